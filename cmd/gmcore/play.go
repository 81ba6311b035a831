package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagequill/gm-core/internal/domain/entities"
	"github.com/sagequill/gm-core/internal/domain/services"
)

func newPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play",
		Short: "Run an interactive narrative session",
		Long: `Reads narrative text line by line and feeds it through the decision
pipeline. Facts are extracted as you type; when a moment warrants a player
choice, a decision is presented and your pick is recorded.

Commands inside the session:
  /goto <location>   move to a new location
  /combat            toggle combat on or off
  /decide            force a decision at the next line
  /facts             show the current valid facts
  /quit              end the session`,
		RunE: runPlay,
	}
}

// playState tracks the host-side view of the fiction between lines.
type playState struct {
	location   string
	moved      bool // set by /goto, consumed by the next line
	combat     bool
	force      bool
	topics     []string
	lastDecide int64
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		fmt.Println("Narrative session started. /quit to end.")
		state := &playState{location: "the beginning"}
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "/") {
				if quit := handleCommand(d, state, line); quit {
					break
				}
				continue
			}

			if err := ctx.Err(); err != nil {
				return err
			}
			if err := handleLine(cmd, d, state, line, scanner); err != nil {
				fmt.Printf("! %v\n", err)
			}
		}
		return scanner.Err()
	})
}

func handleCommand(d *Deps, state *playState, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/goto":
		if len(fields) < 2 {
			fmt.Println("usage: /goto <location>")
			return false
		}
		state.location = strings.Join(fields[1:], " ")
		state.moved = true
		fmt.Printf("Moved to %s.\n", state.location)
	case "/combat":
		state.combat = !state.combat
		fmt.Printf("Combat active: %v\n", state.combat)
	case "/decide":
		state.force = true
		fmt.Println("Next line will force a decision.")
	case "/facts":
		displayFacts(d.Session.Facts().ValidFacts())
	default:
		fmt.Printf("unknown command %s\n", fields[0])
	}
	return false
}

func handleLine(cmd *cobra.Command, d *Deps, state *playState, line string, scanner *bufio.Scanner) error {
	ctx := cmd.Context()
	nowMs := time.Now().UnixMilli()

	situation := entities.Situation{
		CurrentLocation:      state.location,
		RecentTopics:         state.topics,
		NarrativeText:        line,
		CombatActive:         state.combat,
		LocationJustChanged:  state.moved,
		LastDecisionAtMs:     state.lastDecide,
		ElapsedSinceDecision: elapsedSince(state.lastDecide, nowMs),
	}

	outcome, err := d.Session.HandleNarrative(ctx, situation, services.HandleOptions{Force: state.force})
	state.force = false
	state.moved = false
	if err != nil {
		return err
	}

	state.topics = appendTopics(state.topics, line)
	for _, f := range outcome.FactsAdded {
		fmt.Printf("  + fact [%s] %s\n", f.Category, f.Content)
	}
	if outcome.Decision == nil {
		return nil
	}

	state.lastDecide = nowMs
	return promptChoice(cmd, d, outcome.Decision, scanner)
}

func promptChoice(cmd *cobra.Command, d *Deps, decision *entities.Decision, scanner *bufio.Scanner) error {
	fmt.Printf("\n== %s\n", decision.Prompt)
	for i, opt := range decision.Options {
		fmt.Printf("  %d. %s\n", i+1, opt.Text)
	}

	for {
		fmt.Print("choice> ")
		if !scanner.Scan() {
			d.Session.Abandon()
			return nil
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" || input == "skip" {
			d.Session.Abandon()
			fmt.Println("Decision abandoned.")
			return nil
		}

		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(decision.Options) {
			fmt.Printf("enter a number between 1 and %d, or skip\n", len(decision.Options))
			continue
		}

		opt := decision.Options[n-1]
		if _, err := d.Session.RecordChoice(cmd.Context(), decision.ID, opt.ID, ""); err != nil {
			return fmt.Errorf("recording choice: %w", err)
		}
		fmt.Printf("Recorded: %s\n\n", opt.Text)
		return nil
	}
}

// appendTopics keeps a short rolling window of capitalized words from recent
// lines, used as topic hints for relevance scoring.
func appendTopics(topics []string, line string) []string {
	for _, word := range strings.Fields(line) {
		word = strings.Trim(word, ".,!?\"'")
		if len(word) > 1 && word[0] >= 'A' && word[0] <= 'Z' {
			topics = append(topics, strings.ToLower(word))
		}
	}
	if len(topics) > 12 {
		topics = topics[len(topics)-12:]
	}
	return topics
}

func elapsedSince(lastMs, nowMs int64) int64 {
	if lastMs == 0 {
		return 0
	}
	return nowMs - lastMs
}
