package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/sefaz-bridge/internal/authority"
	"github.com/rezonia/sefaz-bridge/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status [files...]",
	Short: "Interpret saved SEFAZ responses",
	Long: `Read the status code and reason from saved status query or distribution
responses, and count the documents a distribution response carries.

Examples:
  sefaz-bridge status retConsSitNFe.xml
  sefaz-bridge status responses/*.xml -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// StatusResult is the interpretation of one response file
type StatusResult struct {
	File      string                 `json:"file"`
	Status    *model.AuthorityStatus `json:"status,omitempty"`
	Outcome   model.Outcome          `json:"outcome"`
	Documents int                    `json:"documents"`
	Error     string                 `json:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	var results []StatusResult
	for _, arg := range args {
		results = append(results, interpretFile(arg))
	}

	if outputFormat != "table" {
		return outputJSON(cmd.OutOrStdout(), results)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tCODE\tREASON\tOUTCOME\tDOCUMENTS")
	fmt.Fprintln(tw, "----\t----\t------\t-------\t---------")
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t%s\t\n", r.File, r.Error, r.Outcome)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.File, r.Status.Code, r.Status.Reason, r.Outcome, r.Documents)
	}
	return tw.Flush()
}

func interpretFile(path string) StatusResult {
	result := StatusResult{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Error = err.Error()
		result.Outcome = model.OutcomeUnparseable
		return result
	}

	dist, err := authority.ParseDistribution(data)
	if err != nil {
		result.Error = err.Error()
		result.Outcome = model.OutcomeUnparseable
		return result
	}

	result.Status = &dist.Status
	result.Outcome = dist.Outcome()
	result.Documents = len(dist.Documents)
	return result
}
