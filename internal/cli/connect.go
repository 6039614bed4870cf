package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paneferry/paneferry/internal/config"
	"github.com/paneferry/paneferry/internal/lister"
)

// newConnectCmd verifies a remote target is reachable and lists its initial
// directory. With no argument it shows the saved connection profiles.
func newConnectCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "connect [name | sftp://user@host:port/path]",
		Short: "Open a remote connection and show its starting directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return listConnections()
			}

			a := newApp()
			defer a.close()

			loc, err := a.resolveTarget(rootContext, args[0])
			if err != nil {
				return err
			}
			entries, err := a.lst.List(rootContext, loc, lister.Options{IncludeHidden: cfg.Transfer.ShowHidden})
			if err != nil {
				return err
			}

			fmt.Printf("Connected. %s contains %d entries.\n", loc.Path, len(entries))

			if save {
				if name, _, ok := splitProfileRef(args[0]); ok {
					cfg.Session.LastConnection = name
					cfg.Session.RightPath = loc.Path
					if err := config.Save(cfg, cfgFile); err != nil {
						return fmt.Errorf("saving session: %w", err)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&save, "save", false, "Remember this connection as the session default")
	return cmd
}

func listConnections() error {
	if len(cfg.Connections) == 0 {
		fmt.Println("No saved connections. Add them under 'connections:' in", config.DefaultConfigPath())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENDPOINT\tAUTH\tINITIAL PATH")
	for _, c := range cfg.Connections {
		auth := "password"
		if c.KeyFile != "" {
			auth = "key"
		}
		fmt.Fprintf(w, "%s\t%s@%s:%d\t%s\t%s\n", c.Name, c.User, c.Host, c.Port, auth, c.InitialPath)
	}
	return w.Flush()
}
