package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/robodelivery/app"
	"github.com/kilianp07/robodelivery/infra/journal"
)

var journalSide string

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Tick journal commands",
}

var journalCatCmd = &cobra.Command{
	Use:   "cat",
	Short: "Print the journaled ticks of one side as JSON lines",
	RunE: func(cmd *cobra.Command, args []string) error {
		if journalSide != app.SideWorld && journalSide != app.SideDispatcher {
			return fmt.Errorf("--side must be %s or %s", app.SideWorld, app.SideDispatcher)
		}
		entries, err := journal.ReadDir(cfg.Journal.Dir, journalSide)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	journalCatCmd.Flags().StringVar(&journalSide, "side", app.SideWorld, "world or dispatcher")
	journalCmd.AddCommand(journalCatCmd)
	rootCmd.AddCommand(journalCmd)
}
