package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/rezonia/sefaz-bridge/internal/payload"
)

var (
	encodePayload bool
	encodeLevel   int
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a docZip payload to XML",
	Long: `Decode a distribution payload (base64, optionally gzip-compressed) and
print the XML. Reads stdin when no file is given.

With --encode the input XML is compressed and base64-encoded instead, which
is handy for building test payloads.

Examples:
  sefaz-bridge decode payload.b64
  cat nota.xml | sefaz-bridge decode --encode`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().BoolVar(&encodePayload, "encode", false, "Encode XML as a gzip + base64 payload")
	decodeCmd.Flags().IntVar(&encodeLevel, "level", gzip.DefaultCompression, "gzip level for --encode (0-9, -1 for default)")
}

func runDecode(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	decoder := payload.NewDecoderWithLevel(encodeLevel)
	out := cmd.OutOrStdout()

	if encodePayload {
		encoded, err := decoder.Encode(string(data))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, encoded)
		return err
	}

	decoded, err := decoder.Decode(string(data))
	if err != nil {
		return err
	}
	printVerbose("Encoding: %s\n", decoded.Encoding)

	if outputFormat == "json" {
		return outputJSON(out, decoded)
	}
	_, err = fmt.Fprintln(out, decoded.XML)
	return err
}
