package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/rezonia/sefaz-bridge/internal/certificate"
	"github.com/rezonia/sefaz-bridge/internal/sefaz"
	"github.com/rezonia/sefaz-bridge/internal/server"
	"github.com/rezonia/sefaz-bridge/internal/trust"
)

var (
	serverAddr     string
	serverDebug    bool
	readTimeout    time.Duration
	writeTimeout   time.Duration
	requestTimeout time.Duration
	manifestation  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for NF-e extraction and SEFAZ lookups.

The API provides endpoints for:
  - POST   /api/v1/nfe/parse-xml               - Recipient of an NF-e
  - POST   /api/v1/nfe/extract-from-xml        - Recipient and access key
  - POST   /api/v1/nfe/extract-from-xml-file   - Same, from a file upload
  - POST   /api/v1/nfe/decode-payload          - Decode a docZip payload
  - POST   /api/v1/nfe/interpret-response      - Status of a SEFAZ response
  - GET    /api/v1/nfe/:key                    - Look up a note at SEFAZ
  - GET    /api/v1/state/:key                  - Issuing state of a key
  - POST   /api/v1/certificate                 - Upload an A1 certificate
  - GET    /api/v1/certificate                 - Certificate in use
  - DELETE /api/v1/certificate                 - Back to the environment certificate
  - GET    /health                             - Health check
  - GET    /metrics                            - Prometheus metrics

Examples:
  # Start server on default port
  sefaz-bridge serve

  # Start with an environment certificate
  sefaz-bridge serve --cert empresa.pfx --password secret --uf SP

  # Start in debug mode
  sefaz-bridge serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (env: SEFAZ_ADDR, default :8080)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 5*time.Minute, "HTTP write timeout")
	serveCmd.Flags().DurationVar(&requestTimeout, "request-timeout", 2*time.Minute, "Timeout of a lookup, retries included")
	serveCmd.Flags().BoolVar(&manifestation, "manifestation", true, "Register the recipient manifestation on status 656 (env: SEFAZ_MANIFESTATION)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	if serverAddr == "" {
		serverAddr = settings.Addr
	}
	if !cmd.Flags().Changed("manifestation") {
		manifestation = settings.Manifestation
	}

	store, err := loadStore()
	if err != nil {
		return err
	}
	if _, _, ok := store.Current(); !ok {
		logger.Warn("no environment certificate; lookups need an upload first")
	}

	roots, err := loadTrust()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	config := &server.Config{
		Address:        serverAddr,
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		RequestTimeout: requestTimeout,
		Debug:          serverDebug,
		Manifestation:  manifestation,
		Sefaz:          sefazConfig(roots),
	}

	srv := server.NewServer(config,
		server.WithCertificateStore(store),
		server.WithTrustStore(roots),
		server.WithRegistry(registry),
		server.WithLogger(logger),
	)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting server", "address", serverAddr, "manifestation", manifestation)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Server stopped")
	return nil
}

// loadStore opens the environment certificate, if one is configured
func loadStore() (*certificate.Store, error) {
	if certPath == "" {
		return certificate.NewStore(nil), nil
	}

	cert, err := certificate.NewLoader().LoadFile(certPath, certPassword, uf, homologation)
	if err != nil {
		return nil, fmt.Errorf("failed to load certificate %s: %w", certPath, err)
	}
	printVerbose("Loaded certificate %s (%s, holder %s)\n", cert.Filename, cert.UF, cert.Holder)
	return certificate.NewStore(cert), nil
}

// loadTrust builds the CA pool for the authority endpoints
func loadTrust() (*trust.Store, error) {
	roots, err := trust.New(trust.WithFile(settings.CAFile))
	if err != nil {
		return nil, fmt.Errorf("failed to load CA bundle %s: %w", settings.CAFile, err)
	}
	if n := len(roots.Added()); n > 0 {
		printVerbose("Added %d CA certificates from %s\n", n, settings.CAFile)
	}
	return roots, nil
}

func sefazConfig(roots *trust.Store) sefaz.Config {
	return sefaz.Config{
		Timeout:         settings.Timeout,
		StatusURL:       settings.StatusURL,
		DistributionURL: settings.DistributionURL,
		RootCAs:         roots.Roots(),
	}
}
