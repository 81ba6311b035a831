package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		audit string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show decision history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				if audit != "" {
					return showAudit(cmd, d, audit)
				}

				records, err := d.Store.ListDecisionRecords(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("listing decision records: %w", err)
				}
				if len(records) == 0 {
					fmt.Println("No decisions recorded.")
					return nil
				}

				for _, rec := range records {
					ts := time.UnixMilli(rec.TimestampMs).Format("2006-01-02 15:04")
					fmt.Printf("%s  %s\n", ts, rec.Prompt)
					fmt.Printf("  chose: %s\n", rec.SelectedText)
					if rec.NarrativeOutcome != "" {
						fmt.Printf("  outcome: %s\n", rec.NarrativeOutcome)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of decisions to display")
	cmd.Flags().StringVar(&audit, "audit", "", "Show the audit log for a fact id instead")

	return cmd
}

func showAudit(cmd *cobra.Command, d *Deps, factID string) error {
	entries, err := d.Store.FindAuditLog(cmd.Context(), factID)
	if err != nil {
		return fmt.Errorf("finding audit log: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No audit entries found.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %s", e.CreatedAt.Format("2006-01-02 15:04"), e.Action)
		if len(e.Details) > 0 {
			fmt.Printf("  %v", e.Details)
		}
		fmt.Println()
	}
	return nil
}
