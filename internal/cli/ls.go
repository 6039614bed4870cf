package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paneferry/paneferry/internal/models"
	"github.com/paneferry/paneferry/internal/vfs"
)

func newLsCmd() *cobra.Command {
	var all bool
	var long bool

	cmd := &cobra.Command{
		Use:   "ls [target]",
		Short: "List a local or remote directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) == 1 {
				target = args[0]
			}

			a := newApp()
			defer a.close()

			loc, err := a.resolveTarget(rootContext, target)
			if err != nil {
				return err
			}

			res, err := a.runRequest(models.OperationRequest{
				Kind:    models.OpList,
				Sources: []vfs.Location{loc},
				Options: models.Options{IncludeHidden: all || cfg.Transfer.ShowHidden},
			}, false)
			if err != nil {
				return err
			}
			if res.Err != nil {
				return res.Err
			}

			printEntries(res.Entries, long)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include hidden entries")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Long format (size, modified time, kind)")
	return cmd
}

// printEntries renders a listing with directories grouped first, each group
// sorted by name.
func printEntries(entries []vfs.Entry, long bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].Kind == vfs.KindDir, entries[j].Kind == vfs.KindDir
		if di != dj {
			return di
		}
		return entries[i].Name < entries[j].Name
	})

	if !long {
		for _, e := range entries {
			name := e.Name
			if e.Kind == vfs.KindDir {
				name += "/"
			}
			fmt.Println(name)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, e := range entries {
		kind := "file"
		switch e.Kind {
		case vfs.KindDir:
			kind = "dir"
		case vfs.KindSymlink:
			kind = "link"
		case vfs.KindSpecial:
			kind = "special"
		}
		size := fmt.Sprintf("%d", e.Size)
		if e.Kind == vfs.KindDir {
			size = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", kind, size, e.ModTime.Format("2006-01-02 15:04"), e.Name)
	}
	_ = w.Flush()
}
