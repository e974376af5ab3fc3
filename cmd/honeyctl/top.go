package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTopCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the most frequently seen indicators",
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := openArchive()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			stats, err := repo.TopIOCs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, st := range stats {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", st.Count, st.Category, st.Value)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of indicators")
	return cmd
}
