package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/vfs"
)

// transferFlags are shared between cp and mv.
type transferFlags struct {
	recursive          bool
	overwrite          string
	preserveTimestamps bool
	abortOnError       bool
	hidden             bool
}

func (f *transferFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.recursive, "recursive", "r", false, "Transfer directories recursively")
	cmd.Flags().StringVar(&f.overwrite, "overwrite", "", "Collision policy: skip, overwrite, rename-with-suffix, prompt")
	cmd.Flags().BoolVar(&f.preserveTimestamps, "preserve-timestamps", false, "Copy source modification times")
	cmd.Flags().BoolVar(&f.abortOnError, "abort-on-error", false, "Stop the batch at the first failed item")
	cmd.Flags().BoolVarP(&f.hidden, "all", "a", false, "Include hidden entries in recursive transfers")
}

func (f *transferFlags) options() (models.Options, error) {
	policy := cfg.Transfer.Overwrite
	if f.overwrite != "" {
		policy = f.overwrite
	}
	switch models.OverwritePolicy(policy) {
	case models.OverwriteSkip, models.OverwriteReplace, models.OverwriteRename, models.OverwritePrompt:
	default:
		return models.Options{}, fmt.Errorf("unknown overwrite policy %q", policy)
	}

	return models.Options{
		Overwrite:          models.OverwritePolicy(policy),
		Recursive:          f.recursive,
		PreserveTimestamps: f.preserveTimestamps || cfg.Transfer.PreserveTimestamps,
		AbortOnError:       f.abortOnError,
		IncludeHidden:      f.hidden || cfg.Transfer.ShowHidden,
	}, nil
}

func newCpCmd() *cobra.Command {
	var flags transferFlags
	cmd := &cobra.Command{
		Use:   "cp <source>... <destination>",
		Short: "Copy files or directories between panes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(models.OpCopy, args, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newMvCmd() *cobra.Command {
	var flags transferFlags
	cmd := &cobra.Command{
		Use:   "mv <source>... <destination>",
		Short: "Move files or directories between panes",
		Long: `Move files or directories between panes.

A move only deletes the source after the destination is written and its
size confirmed, so a failed transfer never loses data.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(models.OpMove, args, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runTransfer(kind models.OperationKind, args []string, flags *transferFlags) error {
	opts, err := flags.options()
	if err != nil {
		return err
	}

	a := newApp()
	defer a.close()

	sources := make([]vfs.Location, 0, len(args)-1)
	for _, arg := range args[:len(args)-1] {
		loc, err := a.resolveTarget(rootContext, arg)
		if err != nil {
			return err
		}
		sources = append(sources, loc)
	}
	dest, err := a.resolveTarget(rootContext, args[len(args)-1])
	if err != nil {
		return err
	}

	res, err := a.runRequest(models.OperationRequest{
		Kind:        kind,
		Sources:     sources,
		Destination: &dest,
		Options:     opts,
	}, true)
	if err != nil {
		return err
	}

	printSummary(res)
	return resultErr(res)
}
