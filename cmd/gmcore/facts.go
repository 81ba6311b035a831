package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sagequill/gm-core/internal/domain/entities"
)

func newFactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Manage world facts",
	}

	cmd.AddCommand(
		newFactsListCmd(),
		newFactsAddCmd(),
		newFactsInvalidateCmd(),
		newFactsRevalidateCmd(),
		newFactsVersionsCmd(),
		newFactsConflictsCmd(),
	)
	return cmd
}

func newFactsListCmd() *cobra.Command {
	var (
		category       string
		tag            string
		includeInvalid bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List world facts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				var facts []entities.Fact
				switch {
				case category != "":
					cat := entities.FactCategory(category)
					if !cat.IsValid() {
						return fmt.Errorf("invalid category %q, valid categories: %v", category, entities.FactCategories)
					}
					facts = d.Session.Facts().GetFactsByCategory(cat)
				case tag != "":
					facts = d.Session.Facts().GetFactsByTag(tag)
				case includeInvalid:
					var err error
					facts, err = d.Store.ListFacts(cmd.Context(), true)
					if err != nil {
						return fmt.Errorf("listing facts: %w", err)
					}
				default:
					facts = d.Session.Facts().ValidFacts()
				}

				if len(facts) == 0 {
					fmt.Println("No facts found.")
					return nil
				}
				displayFacts(facts)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "Filter by tag")
	cmd.Flags().BoolVarP(&includeInvalid, "all", "a", false, "Include invalidated facts")

	return cmd
}

func newFactsAddCmd() *cobra.Command {
	var (
		category   string
		importance int
		confidence int
		tags       []string
	)

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Add a world fact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				draft := entities.FactDraft{
					Content:    args[0],
					Category:   entities.FactCategory(category),
					Importance: importance,
					Confidence: confidence,
					Tags:       tags,
				}

				conflicts := d.Session.Facts().DetectConflicts(draft)
				fact, err := d.Session.Facts().ResolveConflicts(cmd.Context(), draft, conflicts)
				if err != nil {
					return fmt.Errorf("adding fact: %w", err)
				}
				if fact == nil {
					fmt.Println("Duplicate of an existing fact, skipped.")
					return nil
				}

				fmt.Printf("Added fact %s [%s]\n", fact.ID, fact.Category)
				for _, c := range conflicts {
					fmt.Printf("  resolved %s with %s: %s\n", c.Kind, c.ExistingFactID, c.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "concept", "Fact category")
	cmd.Flags().IntVarP(&importance, "importance", "i", 0, "Importance 1-10 (default 5)")
	cmd.Flags().IntVar(&confidence, "confidence", 0, "Confidence 1-10 (default 5)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tags (repeatable)")

	return cmd
}

func newFactsInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <fact-id>",
		Short: "Mark a fact as no longer true",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				if err := d.Session.Facts().InvalidateFact(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("invalidating fact: %w", err)
				}
				fmt.Printf("Invalidated fact %s\n", args[0])
				return nil
			})
		},
	}
}

func newFactsRevalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revalidate <fact-id>",
		Short: "Restore a previously invalidated fact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				if err := d.Session.Facts().ValidateFact(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("revalidating fact: %w", err)
				}
				fmt.Printf("Revalidated fact %s\n", args[0])
				return nil
			})
		},
	}
}

func newFactsVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <fact-id>",
		Short: "Show the version history of a fact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				versions, err := d.Store.FindVersionsByFact(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("finding versions: %w", err)
				}
				if len(versions) == 0 {
					fmt.Println("No versions found.")
					return nil
				}
				for _, v := range versions {
					fmt.Printf("v%d %-13s %s  %s\n",
						v.Version, v.ChangeType, v.CreatedAt.Format("2006-01-02 15:04"), v.Data.Content)
					if v.Reason != "" {
						fmt.Printf("   reason: %s\n", v.Reason)
					}
				}
				return nil
			})
		},
	}
}

func newFactsConflictsCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "conflicts <content>",
		Short: "Check proposed content against existing facts without saving",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				conflicts := d.Session.Facts().DetectConflicts(entities.FactDraft{
					Content:  args[0],
					Category: entities.FactCategory(category),
				})
				if len(conflicts) == 0 {
					fmt.Println("No conflicts detected.")
					return nil
				}
				for _, c := range conflicts {
					fmt.Printf("%s with %s: %s\n", c.Kind, c.ExistingFactID, c.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "concept", "Category of the proposed fact")
	return cmd
}

func displayFacts(facts []entities.Fact) {
	fmt.Printf("Found %d fact(s):\n\n", len(facts))
	for _, f := range facts {
		marker := " "
		if !f.IsValid {
			marker = "✗"
		}
		fmt.Printf("%s %s [%s] imp=%d conf=%d v%d\n", marker, f.ID, f.Category, f.Importance, f.Confidence, f.Version)
		fmt.Printf("  %s\n", f.Content)
		if len(f.Tags) > 0 {
			fmt.Printf("  tags: %s\n", strings.Join(f.Tags, ", "))
		}
	}
}
