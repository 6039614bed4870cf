package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/pathid"
	"github.com/paneferry/paneferry/internal/vfs"
)

func newRmCmd() *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "rm <target>...",
		Short: "Delete files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			defer a.close()

			sources := make([]vfs.Location, 0, len(args))
			for _, arg := range args {
				loc, err := a.resolveTarget(rootContext, arg)
				if err != nil {
					return err
				}
				sources = append(sources, loc)
			}

			res, err := a.runRequest(models.OperationRequest{
				Kind:    models.OpDelete,
				Sources: sources,
				Options: models.Options{Recursive: recursive},
			}, false)
			if err != nil {
				return err
			}
			printSummary(res)
			return resultErr(res)
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Delete directories and their contents")
	return cmd
}

func newMkdirCmd() *cobra.Command {
	var parents bool

	cmd := &cobra.Command{
		Use:   "mkdir <target>",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			defer a.close()

			dest, err := a.resolveTarget(rootContext, args[0])
			if err != nil {
				return err
			}

			res, err := a.runRequest(models.OperationRequest{
				Kind:        models.OpMkdir,
				Destination: &dest,
				Options:     models.Options{Recursive: parents},
			}, false)
			if err != nil {
				return err
			}
			return resultErr(res)
		},
	}

	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "Create missing parent directories")
	return cmd
}

func newRenameCmd() *cobra.Command {
	var overwrite string

	cmd := &cobra.Command{
		Use:   "rename <target> <new-name>",
		Short: "Rename an entry in place",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := newApp()
			defer a.close()

			src, err := a.resolveTarget(rootContext, args[0])
			if err != nil {
				return err
			}

			p, err := a.reg.Get(src.Handle)
			if err != nil {
				return err
			}
			pid := pathid.ForSeparator(p.Separator())
			newName := args[1]
			if newName != pid.Base(newName) {
				return fmt.Errorf("new name %q must not contain a path separator", newName)
			}
			dest := vfs.Location{Handle: src.Handle, Path: pid.Join(pid.Dir(src.Path), newName)}

			policy := models.OverwritePolicy(cfg.Transfer.Overwrite)
			if overwrite != "" {
				policy = models.OverwritePolicy(overwrite)
			}

			res, err := a.runRequest(models.OperationRequest{
				Kind:        models.OpRename,
				Sources:     []vfs.Location{src},
				Destination: &dest,
				Options:     models.Options{Overwrite: policy},
			}, false)
			if err != nil {
				return err
			}
			if res.Err == nil && res.Succeeded() == 1 {
				fmt.Printf("%s -> %s\n", src.Path, res.Items[0].Dest.Path)
			}
			return resultErr(res)
		},
	}

	cmd.Flags().StringVar(&overwrite, "overwrite", "", "Collision policy: skip, overwrite, rename-with-suffix")
	return cmd
}
