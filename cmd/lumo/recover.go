package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vsariola/lumo/recovery"
)

func newRecoverCmd(g *globals) *cobra.Command {
	var (
		out  string
		list bool
	)
	cmd := &cobra.Command{
		Use:   "recover <file>",
		Short: "Restore the latest autosave of a project",
		Long: `recover writes the latest autosaved snapshot of the project file to
the output file, or lists the snapshots with --list.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := g.cfg.RecoveryPath()
			if err != nil {
				return err
			}
			store, err := recovery.Open(path, g.cfg.Recovery.Keep, logrus.NewEntry(g.log))
			if err != nil {
				return err
			}
			defer store.Close()
			name := recoveryName(args[0])
			if list {
				snaps, err := store.List(cmd.Context(), name)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSAVED")
				for _, s := range snaps {
					fmt.Fprintf(w, "%v\t%v\n", s.ID, s.Saved.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			}
			if out == "" {
				out = args[0] + ".recovered"
			}
			snap, err := store.Latest(cmd.Context(), name)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, snap.Document, 0644); err != nil {
				return fmt.Errorf("cannot write %v: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote snapshot of %v to %v\n", snap.Saved.Format("2006-01-02 15:04:05"), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file, default <file>.recovered")
	cmd.Flags().BoolVar(&list, "list", false, "list the snapshots instead")
	return cmd
}
