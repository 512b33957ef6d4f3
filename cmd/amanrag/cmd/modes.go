package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/internal/chunk"
	"github.com/Aman-CERP/amanrag/internal/retrieve"
)

func newModesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List supported segmentation strategies and retrieval modes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modes := make([]string, 0, 6)
			for _, m := range retrieve.AllModes() {
				modes = append(modes, string(m))
			}

			out := struct {
				Strategies []string `json:"strategies"`
				Modes      []string `json:"modes"`
			}{
				Strategies: chunk.Strategies(),
				Modes:      modes,
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
