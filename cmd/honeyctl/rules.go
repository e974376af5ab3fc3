package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashureev/honeypot/internal/engine"
)

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules [path]",
		Short: "Validate an engine rules file, or print the built-in limits",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules := engine.DefaultRules()
			if len(args) == 1 {
				loaded, err := engine.LoadRules(args[0])
				if err != nil {
					return err
				}
				rules = loaded
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: max_turns=%d repeat_limit=%d no_progress_limit=%d intents=%d\n",
				rules.Limits.MaxTurns, rules.Limits.RepeatLimit, rules.Limits.NoProgressLimit, len(rules.Intents))
			return nil
		},
	}
}
