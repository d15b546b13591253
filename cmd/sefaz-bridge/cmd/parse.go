package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/sefaz-bridge/internal/decimal"
	"github.com/rezonia/sefaz-bridge/internal/model"
	"github.com/rezonia/sefaz-bridge/internal/processor"
)

var (
	outputFile  string
	timeout     time.Duration
	concurrency int
)

var parseCmd = &cobra.Command{
	Use:   "parse [files...]",
	Short: "Extract recipient data from NF-e files",
	Long: `Extract the recipient, total value and access key from one or more files.

Each file may hold:
  - An NF-e XML: nfeProc, NFe or a bare infNFe, with or without namespace
  - A docZip payload: base64, optionally gzip-compressed (.b64, .txt)
  - A SEFAZ distribution response: the first complete note is extracted

Examples:
  sefaz-bridge parse nota.xml
  sefaz-bridge parse *.xml -o results.json
  sefaz-bridge parse notas/ -f table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	parseCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for the whole batch")
	parseCmd.Flags().IntVar(&concurrency, "concurrency", 4, "Files processed at once")
}

func runParse(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files found to process")
	}

	printVerbose("Found %d files to process\n", len(files))

	inputs := make([]processor.Input, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}
		inputs = append(inputs, processor.Input{Name: file, Data: data})
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	pipeline := processor.NewPipeline(processor.WithConcurrency(concurrency))
	results, err := pipeline.ProcessBatch(ctx, inputs)
	if err != nil {
		return err
	}

	out := make([]*ParseResult, 0, len(results))
	for _, r := range results {
		pr := newParseResult(r)
		if pr.Error != "" {
			printVerbose("%s: error: %s\n", pr.File, pr.Error)
		} else {
			printVerbose("%s: method %s\n", pr.File, pr.Method)
		}
		out = append(out, pr)
	}

	return outputResults(out)
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		// Check if it's a glob pattern
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}

		if len(matches) == 0 {
			return nil, fmt.Errorf("file not found: %s", arg)
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue
			}

			if !info.IsDir() {
				files = append(files, match)
				continue
			}

			err = filepath.Walk(match, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isSupportedFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}

	return files, nil
}

func isSupportedFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml", ".b64", ".txt":
		return true
	default:
		return false
	}
}

func outputResults(results []*ParseResult) error {
	var writer io.Writer = os.Stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	switch outputFormat {
	case "json":
		return outputJSON(writer, results)
	case "table":
		return outputTable(writer, results)
	case "csv":
		return outputCSV(writer, results)
	default:
		return fmt.Errorf("unsupported output format: %s", outputFormat)
	}
}

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func outputTable(w io.Writer, results []*ParseResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tRECIPIENT\tTAX ID\tTOTAL\tUF\tACCESS KEY\tMETHOD")
	fmt.Fprintln(tw, "----\t---------\t------\t-----\t--\t----------\t------")

	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(tw, "%s\tERROR: %s\t\t\t\t\t\n", r.File, r.Error)
			continue
		}

		if d := r.Document; d != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.File,
				d.Recipient.Name,
				d.Recipient.TaxID,
				totalBRL(d),
				d.State,
				d.AccessKey,
				r.Method,
			)
			continue
		}

		status := ""
		if r.Status != nil {
			status = r.Status.Code + " " + r.Status.Reason
		}
		fmt.Fprintf(tw, "%s\t%s\t\t\t\t\t%s\n", r.File, status, r.Method)
	}

	return tw.Flush()
}

func outputCSV(w io.Writer, results []*ParseResult) error {
	fmt.Fprintln(w, "file,recipient,tax_id,tax_id_kind,address,total_value,uf,access_key,method,status,error")

	for _, r := range results {
		status := ""
		if r.Status != nil {
			status = r.Status.Code
		}

		if r.Error != "" || r.Document == nil {
			fmt.Fprintf(w, "%s,,,,,,,,%s,%s,%s\n", escapeCSV(r.File), r.Method, status, escapeCSV(r.Error))
			continue
		}

		d := r.Document
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,\n",
			escapeCSV(r.File),
			escapeCSV(d.Recipient.Name),
			d.Recipient.TaxID,
			d.Recipient.TaxIDKind,
			escapeCSV(d.Recipient.Address),
			total(d),
			d.State,
			d.AccessKey,
			r.Method,
			status,
		)
	}

	return nil
}

func total(d *model.ParsedDocument) string {
	if d.Recipient.TotalValue == nil {
		return ""
	}
	return d.Recipient.TotalValue.StringFixed(2)
}

func totalBRL(d *model.ParsedDocument) string {
	if d.Recipient.TotalValue == nil {
		return ""
	}
	return decimal.FormatBRL(*d.Recipient.TotalValue)
}

func escapeCSV(s string) string {
	if strings.Contains(s, ",") || strings.Contains(s, "\"") || strings.Contains(s, "\n") {
		return "\"" + strings.ReplaceAll(s, "\"", "\"\"") + "\""
	}
	return s
}

// ParseResult holds the result of processing a single file
type ParseResult struct {
	File     string                 `json:"file"`
	Document *model.ParsedDocument  `json:"document,omitempty"`
	Status   *model.AuthorityStatus `json:"status,omitempty"`
	Encoding model.PayloadEncoding  `json:"encoding,omitempty"`
	Method   string                 `json:"method,omitempty"`
	Warnings []string               `json:"warnings,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

func newParseResult(r *processor.Result) *ParseResult {
	pr := &ParseResult{
		File:     r.Source,
		Document: r.Document,
		Status:   r.Status,
		Encoding: r.Encoding,
		Method:   string(r.Method),
		Warnings: r.Warnings,
	}
	if r.Error != nil {
		pr.Error = r.Error.Error()
	}
	return pr
}
