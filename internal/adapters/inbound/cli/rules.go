package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdidvp/lintfix/internal/adapters/outbound/tui"
	"github.com/abdidvp/lintfix/internal/domain/rules"
)

func newRulesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List known rules",
		Long:  "List the rule catalogue. Fixable rules are shown in the order their fixes are applied.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				data, err := json.MarshalIndent(rules.Describe(rules.Default()), "", "  ")
				if err != nil {
					return fmt.Errorf("marshaling rules: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), tui.RenderRules(rules.Default()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
