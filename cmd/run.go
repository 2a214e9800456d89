package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kilianp07/robodelivery/app"
)

var worldCmd = &cobra.Command{
	Use:   "world",
	Short: "Run the world runtime",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSide(app.SideWorld)
	},
}

var dispatcherCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Run the dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSide(app.SideDispatcher)
	},
}

var simulateTicks int

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the world and the dispatcher in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSide(app.SideSimulate, app.WithTickLimit(simulateTicks))
	},
}

func init() {
	simulateCmd.Flags().IntVar(&simulateTicks, "ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	rootCmd.AddCommand(worldCmd, dispatcherCmd, simulateCmd)
}
