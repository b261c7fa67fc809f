package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the load/reprocess status of every declared attribute",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	m, err := openManager()
	if err != nil {
		return err
	}
	reports := m.Status().All()
	for _, r := range reports {
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", r.Name, r.Status)
	}
	if !m.Status().Healthy() {
		return fmt.Errorf("attrctl: attribute status reports unhealthy")
	}
	return nil
}
