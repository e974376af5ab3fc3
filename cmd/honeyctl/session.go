package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "session [id]",
		Short: "Show an archived session, or list recent ones",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openArchive()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			if len(args) == 0 {
				sessions, err := repo.ListSessions(cmd.Context(), limit)
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tturns=%d\n", s.ID, s.Status, s.StopReason, s.Turns)
				}
				return nil
			}

			s, err := repo.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if s == nil {
				return fmt.Errorf("session %s not found", args[0])
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of sessions to list")
	return cmd
}
