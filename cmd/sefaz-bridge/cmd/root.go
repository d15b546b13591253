package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/sefaz-bridge/internal/config"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	configFile   string
	certPath     string
	certPassword string
	uf           string
	homologation bool

	// Environment settings, overridden by the flags above
	settings config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sefaz-bridge",
	Short: "Extract NF-e data and query the SEFAZ web services",
	Long: `sefaz-bridge extracts recipient data from Brazilian NF-e documents and
talks to the tax authority (SEFAZ) web services with an A1 certificate.

Supports:
  - NF-e XML at any envelope depth (nfeProc, NFe, infNFe)
  - Distribution payloads (docZip, gzip + base64)
  - Status query and distribution responses (SOAP 1.1 and 1.2)

Examples:
  # Extract the recipient of a note
  sefaz-bridge parse nota.xml

  # Process a directory as a table
  sefaz-bridge parse notas/ -f table

  # Look up a note by access key
  sefaz-bridge lookup 3124 0112 3456 7800 0199 5500 1000 0012 3411 2345 6789 --cert empresa.pfx --password secret

  # Serve the HTTP API
  sefaz-bridge serve`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file (replaces environment settings)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json, csv, table)")
	rootCmd.PersistentFlags().StringVar(&certPath, "cert", "", "A1 certificate file, .pfx or .p12 (env: CERT_PATH)")
	rootCmd.PersistentFlags().StringVar(&certPassword, "password", "", "Certificate password (env: CERT_PASSWORD)")
	rootCmd.PersistentFlags().StringVar(&uf, "uf", "", "Certificate state (env: UF, default MG)")
	rootCmd.PersistentFlags().BoolVar(&homologation, "homologacao", false, "Use the homologation environment (env: HOMOLOGACAO)")

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	settings = config.FromEnv()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		settings = loaded
		printVerbose("Loaded configuration from %s\n", configFile)
	}

	if certPath == "" {
		certPath = settings.CertPath
	}
	if certPassword == "" {
		certPassword = settings.CertPassword
	}
	if uf == "" {
		uf = settings.UF
	}
	if !homologation {
		homologation = settings.Homologation
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// newLogger writes JSON logs to stderr, at debug level with --verbose
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
