package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagequill/gm-core/internal/domain/services"
)

func newExtractCmd() *cobra.Command {
	var (
		file   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "Extract world facts from narrative text",
		Long:  "Extracts durable world facts from narrative text and folds them into the fact store through conflict resolution.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args, file)
			if err != nil {
				return err
			}

			return withDeps(cmd.Context(), func(d *Deps) error {
				if dryRun {
					drafts := services.NewExtractor().ExtractFromText(text)
					if len(drafts) == 0 {
						fmt.Println("No facts extracted.")
						return nil
					}
					for _, draft := range drafts {
						fmt.Printf("[%s] imp=%d conf=%d %s\n", draft.Category, draft.Importance, draft.Confidence, draft.Content)
					}
					return nil
				}

				facts := d.Session.Facts()
				var added int
				for _, draft := range services.NewExtractor().ExtractFromText(text) {
					conflicts := facts.DetectConflicts(draft)
					fact, err := facts.ResolveConflicts(cmd.Context(), draft, conflicts)
					if err != nil {
						return fmt.Errorf("resolving conflicts: %w", err)
					}
					if fact != nil {
						added++
						fmt.Printf("+ [%s] %s\n", fact.Category, fact.Content)
					}
				}
				fmt.Printf("Added %d fact(s).\n", added)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read narrative text from a file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show extracted facts without saving")

	return cmd
}

func readInput(args []string, file string) (string, error) {
	switch {
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading input file: %w", err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("provide narrative text as an argument or via --file")
	}
}
