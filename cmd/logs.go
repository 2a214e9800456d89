package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/robodelivery/core/dispatch/logging"
	"github.com/kilianp07/robodelivery/pkg/export"
)

var logsFlags struct {
	format   string
	output   string
	decision string
	robot    int
	order    int
	since    string
	until    string
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Dispatcher decision log commands",
}

var logsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded decisions as JSON or CSV",
	RunE:  runLogsExport,
}

func init() {
	f := logsExportCmd.Flags()
	f.StringVar(&logsFlags.format, "format", "json", "output format: json or csv")
	f.StringVarP(&logsFlags.output, "output", "o", "", "output file (default stdout)")
	f.StringVar(&logsFlags.decision, "decision", "", "only this decision")
	f.IntVar(&logsFlags.robot, "robot", -1, "only decisions about this robot")
	f.IntVar(&logsFlags.order, "order", -1, "only decisions about this order")
	f.StringVar(&logsFlags.since, "since", "", "RFC 3339 lower bound")
	f.StringVar(&logsFlags.until, "until", "", "RFC 3339 upper bound")
	logsCmd.AddCommand(logsExportCmd)
	rootCmd.AddCommand(logsCmd)
}

func logsQuery() (logging.LogQuery, error) {
	q := logging.LogQuery{Decision: logging.Decision(logsFlags.decision)}
	var err error
	if logsFlags.since != "" {
		if q.Start, err = time.Parse(time.RFC3339, logsFlags.since); err != nil {
			return q, fmt.Errorf("--since: %w", err)
		}
	}
	if logsFlags.until != "" {
		if q.End, err = time.Parse(time.RFC3339, logsFlags.until); err != nil {
			return q, fmt.Errorf("--until: %w", err)
		}
	}
	if logsFlags.robot >= 0 {
		id := logsFlags.robot
		q.Robot = &id
	}
	if logsFlags.order >= 0 {
		id := logsFlags.order
		q.Order = &id
	}
	return q, nil
}

func runLogsExport(cmd *cobra.Command, args []string) error {
	q, err := logsQuery()
	if err != nil {
		return err
	}
	store, err := logging.Open(cfg.DecisionLog)
	if err != nil {
		return fmt.Errorf("decision log: %w", err)
	}
	defer func() { _ = store.Close() }()
	records, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if logsFlags.output != "" {
		f, err := os.Create(logsFlags.output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return export.Write(w, logsFlags.format, records)
}
