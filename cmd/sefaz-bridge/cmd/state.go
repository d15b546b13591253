package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/sefaz-bridge/internal/fiscal"
)

var stateCmd = &cobra.Command{
	Use:   "state <access key>",
	Short: "Show the issuing state of an access key",
	Long: `Print the state (UF) that issued an NF-e, read from the first two digits
of its access key. Spaces and punctuation in the key are ignored.

Examples:
  sefaz-bridge state 31240112345678000199550010000012341123456789
  sefaz-bridge state 3124 0112 3456 7800 0199 5500 1000 0012 3411 2345 6789`,
	Args: cobra.MinimumNArgs(1),
	RunE: runState,
}

func init() {
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	key, err := fiscal.CleanAccessKey(strings.Join(args, ""))
	if err != nil {
		return err
	}

	state, ok := fiscal.StateFromKey(string(key))
	if !ok {
		return fmt.Errorf("unknown state code %q", key.StateCode())
	}

	if outputFormat == "json" {
		return outputJSON(cmd.OutOrStdout(), map[string]string{
			"access_key": string(key),
			"code":       key.StateCode(),
			"uf":         state,
			"issuer":     fiscal.FormatTaxID(key.IssuerTaxID()).String(),
			"model":      key.Model(),
		})
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), state)
	return err
}
