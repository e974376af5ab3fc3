package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/honeypot/internal/classifier"
	"github.com/ashureev/honeypot/internal/intel"
)

func newExtractCmd() *cobra.Command {
	var classify bool

	cmd := &cobra.Command{
		Use:   "extract [text...]",
		Short: "Extract indicators from text",
		Long:  `Reads the arguments, or stdin when none are given, and prints the UPI ids, phone numbers, links and domains found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}

			out := map[string]any{"intel": intel.Extract(text)}
			if classify {
				analysis, err := classifier.NewKeyword().Classify(cmd.Context(), text)
				if err != nil {
					return err
				}
				out["analysis"] = analysis
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&classify, "classify", false, "also run the keyword classifier")
	return cmd
}
