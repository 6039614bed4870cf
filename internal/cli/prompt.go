package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/paneferry/paneferry/internal/events"
)

// promptPassword reads a password without echo. Falls back to a plain line
// read when stdin is not a terminal (tests, pipes).
func promptPassword(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// servePrompts answers collision prompts interactively until stop is
// closed. Returns immediately-started goroutine's stop func.
func (a *app) servePrompts() func() {
	prompts := a.bus.Subscribe(events.EventPrompt)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-prompts:
				if !ok {
					return
				}
				p, ok := ev.(*events.PromptEvent)
				if !ok {
					continue
				}
				p.Reply <- askCollision(p)
			case <-stop:
				return
			}
		}
	}()

	return func() {
		close(stop)
		<-done
	}
}

// askCollision asks what to do about one existing destination entry.
func askCollision(p *events.PromptEvent) events.PromptDecision {
	fmt.Fprintf(os.Stderr, "\n'%s' already exists at the destination.\n", p.Existing.Name)
	fmt.Fprintln(os.Stderr, "What would you like to do?")
	fmt.Fprintln(os.Stderr, "  1. Skip - Leave the existing file, skip this one")
	fmt.Fprintln(os.Stderr, "  2. Skip all - Skip every remaining collision")
	fmt.Fprintln(os.Stderr, "  3. Replace - Overwrite the existing file")
	fmt.Fprintln(os.Stderr, "  4. Replace all - Overwrite every remaining collision")
	fmt.Fprintln(os.Stderr, "  5. Rename - Keep both, write under a new name")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "Choose [1-5]: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			// Unanswerable prompt declines the item.
			return events.PromptDecision{Action: events.PromptSkip}
		}
		switch strings.TrimSpace(input) {
		case "1":
			return events.PromptDecision{Action: events.PromptSkip}
		case "2":
			return events.PromptDecision{Action: events.PromptSkip, ApplyToAll: true}
		case "3":
			return events.PromptDecision{Action: events.PromptReplace}
		case "4":
			return events.PromptDecision{Action: events.PromptReplace, ApplyToAll: true}
		case "5":
			return events.PromptDecision{Action: events.PromptRename}
		default:
			fmt.Fprintln(os.Stderr, "Invalid choice, please try again.")
		}
	}
}
