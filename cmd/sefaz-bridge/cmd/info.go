package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/sefaz-bridge/internal/decimal"
	xmlparser "github.com/rezonia/sefaz-bridge/internal/parser/xml"
	"github.com/rezonia/sefaz-bridge/internal/processor"
)

var infoCmd = &cobra.Command{
	Use:   "info [files...]",
	Short: "Show information about NF-e files",
	Long: `Display information about files without full processing.

Shows:
  - Detected input format (xml, payload, response)
  - Root element of markup
  - Access key and issuing state, when present

Examples:
  sefaz-bridge info nota.xml
  sefaz-bridge info notas/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		return fmt.Errorf("no files found")
	}

	for _, file := range files {
		printFileInfo(file)
		fmt.Println()
	}

	return nil
}

func printFileInfo(filePath string) {
	fmt.Printf("File: %s\n", filePath)

	info, err := os.Stat(filePath)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		return
	}

	fmt.Printf("  Size: %d bytes\n", info.Size())
	fmt.Printf("  Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Printf("  Error reading file: %v\n", err)
		return
	}

	format := processor.DetectFormat(data)
	fmt.Printf("  Format: %s\n", format)

	if format != processor.FormatXML {
		return
	}

	root, err := xmlparser.ParseTree(data)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		return
	}
	fmt.Printf("  Root: %s\n", xmlparser.LocalName(root.Tag))
	if ns := root.NamespaceURI(); ns != "" {
		fmt.Printf("  Namespace: %s\n", ns)
	}

	doc, err := xmlparser.NewDocument(root)
	if err != nil {
		fmt.Printf("  Information node: not found\n")
		return
	}

	if key, ok := xmlparser.ResolveAccessKey(doc); ok {
		fmt.Printf("  Access key: %s\n", key)
		fmt.Printf("  Model: %s\n", key.Model())
	} else {
		fmt.Printf("  Access key: not found\n")
	}

	recipient := xmlparser.ExtractRecipient(doc)
	if recipient.Name != "" {
		fmt.Printf("  Recipient: %s\n", recipient.Name)
	}
	if recipient.PostalCode != "" {
		fmt.Printf("  CEP: %s\n", recipient.PostalCode)
	}
	if recipient.TotalValue != nil {
		fmt.Printf("  Total: %s\n", decimal.FormatBRL(*recipient.TotalValue))
	}
}
