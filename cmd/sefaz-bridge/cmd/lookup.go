package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/sefaz-bridge/internal/authority"
	"github.com/rezonia/sefaz-bridge/internal/sefaz"
)

var (
	lookupTimeout time.Duration
	noManifest    bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <access key>",
	Short: "Look up a note at SEFAZ by access key",
	Long: `Query the authorization status of a note and, when it is authorized,
download and parse the full XML through the national distribution service.

Requires an A1 certificate (--cert/--password or CERT_PATH/CERT_PASSWORD).

Examples:
  sefaz-bridge lookup 31240112345678000199550010000012341123456789
  sefaz-bridge lookup 3124 0112 3456 7800 0199 5500 1000 0012 3411 2345 6789 --homologacao`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().DurationVar(&lookupTimeout, "timeout", 2*time.Minute, "Timeout of the lookup, retries included")
	lookupCmd.Flags().BoolVar(&noManifest, "no-manifest", false, "Do not register the recipient manifestation on status 656")
}

func runLookup(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}

	roots, err := loadTrust()
	if err != nil {
		return err
	}

	client := sefaz.NewClient(store, sefazConfig(roots))
	service := authority.NewService(client,
		authority.WithManifestation(settings.Manifestation && !noManifest),
		authority.WithLogger(newLogger()),
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), lookupTimeout)
	defer cancel()

	result, err := service.Lookup(ctx, strings.Join(args, ""))
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		printVerbose("Warning: %s\n", w)
	}

	if outputFormat == "json" {
		return outputJSON(cmd.OutOrStdout(), result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Access key: %s\n", result.AccessKey)
	fmt.Fprintf(out, "Status:     %s %s\n", result.Status.Code, result.Status.Reason)
	if result.Document == nil {
		fmt.Fprintln(out, "Document:   not available")
		return nil
	}
	r := result.Document.Recipient
	fmt.Fprintf(out, "Recipient:  %s\n", r.Name)
	fmt.Fprintf(out, "Tax ID:     %s\n", r.TaxID)
	fmt.Fprintf(out, "Address:    %s\n", r.Address)
	fmt.Fprintf(out, "Total:      %s\n", total(result.Document))
	return nil
}
