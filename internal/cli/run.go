package cli

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/progress"
)

const resultTimeUnit = 10 * time.Millisecond

// runRequest submits one request and blocks until its result, rendering
// progress and serving collision prompts while it runs. Ctrl+C cancels the
// request but still waits for its cleanup to finish.
func (a *app) runRequest(req models.OperationRequest, showProgress bool) (*models.OperationResult, error) {
	interactive := term.IsTerminal(int(syscall.Stdin))
	if req.Options.Overwrite == models.OverwritePrompt && interactive {
		stopPrompts := a.servePrompts()
		defer stopPrompts()
	}

	var reporter progress.Reporter = progress.NewNoOp()
	if showProgress && term.IsTerminal(int(syscall.Stderr)) {
		reporter = progress.NewBar()
	}
	renderer := progress.NewRenderer(a.bus, reporter)

	id, err := a.q.Submit(req)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go renderer.Run(id, done)
	go func() {
		select {
		case <-rootContext.Done():
			_ = a.q.Cancel(id)
		case <-done:
		}
	}()

	res, err := a.q.Wait(id)
	close(done)
	return res, err
}

// printSummary reports per-item failures and the batch tallies.
func printSummary(res *models.OperationResult) {
	for _, item := range res.Items {
		switch item.State {
		case models.ItemFailed:
			fmt.Fprintf(os.Stderr, "failed: %s: %v\n", item.Source.Path, item.Err)
		case models.ItemSkipped:
			fmt.Fprintf(os.Stderr, "skipped: %s\n", item.Source.Path)
		}
	}
	fmt.Fprintf(os.Stderr, "%d succeeded, %d skipped, %d failed, %d cancelled (%s)\n",
		res.Succeeded(), res.Skipped(), res.Failed(), res.Cancelled(), res.WallTime.Round(resultTimeUnit))
}

// resultErr converts a finished result into the command's exit error.
func resultErr(res *models.OperationResult) error {
	if res.Err != nil {
		return res.Err
	}
	if res.Failed() > 0 {
		return fmt.Errorf("%d item(s) failed", res.Failed())
	}
	return nil
}
