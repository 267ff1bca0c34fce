package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/datamorph-ai/datamorph/internal/audit"
	"github.com/datamorph-ai/datamorph/internal/config"
)

var logsCmd = &cobra.Command{
	Use:   "logs <run-id>",
	Short: "Show the audit trail for a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		path := cfg.Audit.Path
		if path == "" {
			path = audit.DefaultDBPath()
		}

		l, err := audit.Open(path)
		if err != nil {
			return fmt.Errorf("opening audit trail: %w", err)
		}
		defer l.Close()

		events, err := l.Events(args[0])
		if err != nil {
			return fmt.Errorf("reading events: %w", err)
		}
		if len(events) == 0 {
			fmt.Printf("no events for run %s\n", args[0])
			return nil
		}

		for _, ev := range events {
			ts := ev.Timestamp.Format("15:04:05")
			label := string(ev.Type)
			switch ev.Type {
			case audit.EventError:
				label = color.RedString(label)
			case audit.EventSuccess:
				label = color.GreenString(label)
			case audit.EventWarning:
				label = color.YellowString(label)
			}
			fmt.Printf("%s  %-22s %s", ts, label, ev.Title)
			if ev.Description != "" {
				fmt.Printf(": %s", ev.Description)
			}
			fmt.Println()
		}
		return nil
	},
}
