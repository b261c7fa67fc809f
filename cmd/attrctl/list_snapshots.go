package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listSnapshotsCmd = &cobra.Command{
	Use:   "list-snapshots",
	Short: "List every on-disk snapshot per attribute, marking the current one",
	RunE:  runListSnapshots,
}

func runListSnapshots(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	for name := range m.WritableAttributes() {
		dir, err := m.Directory(name)
		if err != nil {
			return fmt.Errorf("attrctl: %s: %w", name, err)
		}
		serials, err := dir.ListSnapshots()
		if err != nil {
			return fmt.Errorf("attrctl: %s: list snapshots: %w", name, err)
		}
		current, hasCurrent, err := dir.CurrentSnapshot()
		if err != nil {
			return fmt.Errorf("attrctl: %s: current snapshot: %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s:\n", name)
		if len(serials) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "  (no snapshots)")
			continue
		}
		for _, s := range serials {
			marker := " "
			if hasCurrent && s == current {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), " %s snapshot-%d\n", marker, s)
		}
	}
	return nil
}
