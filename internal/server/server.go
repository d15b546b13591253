package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rezonia/sefaz-bridge/internal/authority"
	"github.com/rezonia/sefaz-bridge/internal/certificate"
	"github.com/rezonia/sefaz-bridge/internal/fiscal"
	"github.com/rezonia/sefaz-bridge/internal/metrics"
	"github.com/rezonia/sefaz-bridge/internal/model"
	"github.com/rezonia/sefaz-bridge/internal/payload"
	"github.com/rezonia/sefaz-bridge/internal/processor"
	"github.com/rezonia/sefaz-bridge/internal/sefaz"
	"github.com/rezonia/sefaz-bridge/internal/trust"
)

const maxUploadSize = 8 << 20

// Config holds server configuration
type Config struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	Debug          bool

	// Used to build the lookup service unless WithLookup is given
	Sefaz         sefaz.Config
	Manifestation bool
}

// Server represents the HTTP API server
type Server struct {
	config   *Config
	router   *gin.Engine
	pipeline *processor.Pipeline
	decoder  *payload.Decoder
	lookup   *authority.Service
	store    *certificate.Store
	loader   *certificate.Loader
	trust    *trust.Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLookup replaces the lookup service built from the certificate store
func WithLookup(l *authority.Service) Option {
	return func(s *Server) {
		s.lookup = l
	}
}

// WithCertificateStore shares a certificate store with the server
func WithCertificateStore(store *certificate.Store) Option {
	return func(s *Server) {
		s.store = store
	}
}

// WithLoader sets the loader used for certificate uploads
func WithLoader(l *certificate.Loader) Option {
	return func(s *Server) {
		s.loader = l
	}
}

// WithTrustStore verifies SEFAZ endpoints and uploaded certificates
// against ts
func WithTrustStore(ts *trust.Store) Option {
	return func(s *Server) {
		s.trust = ts
	}
}

// WithRegistry registers the server metrics in reg and serves it on /metrics
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithLogger sets the request and lookup logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new API server
func NewServer(config *Config, opts ...Option) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 2 * time.Minute
	}

	s := &Server{config: config}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.store == nil {
		s.store = certificate.NewStore(nil)
	}
	if s.loader == nil {
		s.loader = certificate.NewLoader()
	}
	s.metrics = metrics.New(s.registry)
	s.decoder = payload.NewDecoder()
	s.pipeline = processor.NewPipeline(processor.WithMetrics(s.metrics))

	if s.lookup == nil {
		if s.trust != nil && config.Sefaz.RootCAs == nil {
			config.Sefaz.RootCAs = s.trust.Roots()
		}
		client := sefaz.NewClient(s.store, config.Sefaz)
		s.lookup = authority.NewService(client,
			authority.WithManifestation(config.Manifestation),
			authority.WithLogger(s.logger),
		)
	}

	router := gin.New()
	router.MaxMultipartMemory = maxUploadSize
	router.Use(gin.Recovery(), requestID(), requestLogger(s.logger))
	s.router = router

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := s.router.Group("/api/v1")
	{
		// Local extraction, no authority involved
		v1.POST("/nfe/parse-xml", s.handleParseXML)
		v1.POST("/nfe/extract-from-xml", s.handleExtractXML)
		v1.POST("/nfe/extract-from-xml-file", s.handleExtractXMLFile)
		v1.POST("/nfe/decode-payload", s.handleDecodePayload)
		v1.POST("/nfe/interpret-response", s.handleInterpretResponse)

		v1.GET("/nfe/:key", s.handleLookup)
		v1.GET("/state/:key", s.handleState)

		v1.POST("/certificate", s.handleUploadCertificate)
		v1.GET("/certificate", s.handleCertificateStatus)
		v1.DELETE("/certificate", s.handleDeleteCertificate)
	}
}

// Run starts the HTTP server and shuts it down when ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	_, _, configured := s.store.Current()
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"time":        time.Now().UTC().Format(time.RFC3339),
		"certificate": configured,
	})
}

func (s *Server) handleParseXML(c *gin.Context) {
	data, ok := s.bindXML(c)
	if !ok {
		return
	}

	result := s.pipeline.ProcessXMLBytes(c.Request.Context(), data)
	if result.Error != nil {
		s.writeError(c, result.Error, http.StatusInternalServerError, result.Warnings)
		return
	}

	r := result.Document.Recipient
	c.JSON(http.StatusOK, RecipientResponse{
		Name:       r.Name,
		Address:    r.Address,
		TaxID:      r.TaxID,
		TotalValue: r.TotalValue,
	})
}

func (s *Server) handleExtractXML(c *gin.Context) {
	data, ok := s.bindXML(c)
	if !ok {
		return
	}
	s.writeExtract(c, s.pipeline.ProcessXMLBytes(c.Request.Context(), data), "")
}

func (s *Server) handleExtractXMLFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.writeMessage(c, http.StatusBadRequest, "missing form file \"file\"")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if strings.ToLower(filepath.Ext(header.Filename)) != ".xml" &&
		contentType != "application/xml" && contentType != "text/xml" {
		s.writeMessage(c, http.StatusBadRequest, "only XML files are accepted")
		return
	}

	data, err := readFormFile(header)
	if err != nil {
		s.writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	s.writeExtract(c, s.pipeline.ProcessXMLBytes(c.Request.Context(), data), header.Filename)
}

func (s *Server) handleDecodePayload(c *gin.Context) {
	var req PayloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	decoded, err := s.decoder.Decode(req.Payload)
	s.metrics.ObserveDecode(decoded.Encoding, err)
	if err != nil {
		s.writeError(c, err, http.StatusInternalServerError, nil)
		return
	}

	c.JSON(http.StatusOK, DecodeResponse{Encoding: decoded.Encoding, XML: decoded.XML})
}

func (s *Server) handleInterpretResponse(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		s.writeMessage(c, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) == 0 {
		s.writeMessage(c, http.StatusBadRequest, "empty request body")
		return
	}

	result := s.pipeline.ProcessResponse(c.Request.Context(), body)
	if result.Error != nil {
		s.writeError(c, result.Error, http.StatusInternalServerError, result.Warnings)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status:    *result.Status,
		Outcome:   result.Outcome,
		Located:   result.Located(),
		Documents: result.Documents,
		Document:  result.Document,
		Warnings:  result.Warnings,
	})
}

func (s *Server) handleLookup(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.lookup.Lookup(ctx, c.Param("key"))
	s.metrics.ObserveLookup(start)

	if err != nil {
		var rejected *model.RejectedError
		if errors.As(err, &rejected) {
			s.metrics.ObserveOutcome(rejected.Status.Outcome())
		}
		s.logger.WarnContext(ctx, "lookup failed",
			slog.String("request_id", RequestID(ctx)),
			slog.String("error", err.Error()),
		)
		s.writeError(c, err, http.StatusBadGateway, nil)
		return
	}
	s.metrics.ObserveOutcome(result.Status.Outcome())

	if result.Document == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:     "note is authorized but its full XML is not available from the authority; send the XML to /api/v1/nfe/parse-xml",
			Status:    &result.Status,
			Warnings:  result.Warnings,
			RequestID: RequestID(ctx),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleState(c *gin.Context) {
	key, err := fiscal.CleanAccessKey(c.Param("key"))
	if err != nil {
		s.writeError(c, err, http.StatusBadRequest, nil)
		return
	}

	uf, ok := fiscal.StateFromKey(string(key))
	if !ok {
		s.writeMessage(c, http.StatusNotFound, fmt.Sprintf("unknown state code %q", key.StateCode()))
		return
	}

	c.JSON(http.StatusOK, StateResponse{AccessKey: string(key), Code: key.StateCode(), UF: uf})
}

func (s *Server) handleUploadCertificate(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		s.writeMessage(c, http.StatusBadRequest, "missing form file \"file\"")
		return
	}

	data, err := readFormFile(header)
	if err != nil {
		s.writeMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	homologation, _ := strconv.ParseBool(c.DefaultPostForm("homologacao", "false"))
	cert, err := s.loader.Load(header.Filename, data, c.PostForm("password"), c.PostForm("uf"), homologation)
	if err != nil {
		s.writeError(c, err, http.StatusBadRequest, nil)
		return
	}

	if err := s.store.Set(cert); err != nil {
		s.writeError(c, err, http.StatusInternalServerError, nil)
		return
	}
	s.metrics.IncrementCertificate("upload")
	s.logger.InfoContext(c.Request.Context(), "certificate uploaded",
		slog.String("request_id", RequestID(c.Request.Context())),
		slog.String("filename", cert.Filename),
		slog.String("uf", cert.UF),
		slog.Bool("homologation", cert.Homologation),
	)

	resp := s.certificateResponse(c.Request.Context(), cert, certificate.SourceUpload)
	resp.Message = "certificate loaded"
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCertificateStatus(c *gin.Context) {
	cert, source, ok := s.store.Current()
	if !ok {
		c.JSON(http.StatusOK, CertificateResponse{Configured: false})
		return
	}
	c.JSON(http.StatusOK, s.certificateResponse(c.Request.Context(), cert, source))
}

func (s *Server) handleDeleteCertificate(c *gin.Context) {
	s.store.Clear()
	s.metrics.IncrementCertificate("remove")

	resp := CertificateResponse{Message: "uploaded certificate removed; the environment certificate is used again"}
	if cert, source, ok := s.store.Current(); ok {
		msg := resp.Message
		resp = s.certificateResponse(c.Request.Context(), cert, source)
		resp.Message = msg
	}
	c.JSON(http.StatusOK, resp)
}

// bindXML reads an XMLRequest and checks it looks like markup
func (s *Server) bindXML(c *gin.Context) ([]byte, bool) {
	var req XMLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeMessage(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, false
	}

	text := strings.TrimSpace(req.XML)
	if text == "" {
		s.writeMessage(c, http.StatusBadRequest, "xml must not be empty")
		return nil, false
	}
	if !strings.HasPrefix(text, "<") {
		s.writeMessage(c, http.StatusBadRequest, "content is not XML")
		return nil, false
	}
	return []byte(text), true
}

func (s *Server) writeExtract(c *gin.Context, result *processor.Result, filename string) {
	if result.Error != nil {
		s.writeError(c, result.Error, http.StatusInternalServerError, result.Warnings)
		return
	}

	c.JSON(http.StatusOK, ExtractResponse{
		Success:   true,
		AccessKey: string(result.Document.AccessKey),
		KeyFound:  result.Document.HasAccessKey(),
		Filename:  filename,
		Document:  result.Document,
		Warnings:  result.Warnings,
	})
}

func (s *Server) writeMessage(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message, RequestID: RequestID(c.Request.Context())})
}

// writeError maps err to a status code. Errors that are not classified get
// fallback.
func (s *Server) writeError(c *gin.Context, err error, fallback int, warnings []string) {
	resp := ErrorResponse{
		Error:     err.Error(),
		Kind:      string(model.KindOf(err)),
		Warnings:  warnings,
		RequestID: RequestID(c.Request.Context()),
	}

	var rejected *model.RejectedError
	if errors.As(err, &rejected) {
		resp.Status = &rejected.Status
	}

	c.JSON(statusFor(err, fallback), resp)
}

func statusFor(err error, fallback int) int {
	var validation *certificate.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.Is(err, certificate.ErrNoCertificate):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch model.KindOf(err) {
	case model.KindInvalidKey:
		return http.StatusBadRequest
	case model.KindSyntax, model.KindStructure, model.KindPayloadDecode, model.KindStatusNotFound:
		return http.StatusUnprocessableEntity
	case model.KindRejected:
		return http.StatusNotFound
	}
	return fallback
}

// certificateResponse describes cert. With a trust store the chain is
// verified and, for certificates issued by an intermediate or root in the
// store, the OCSP status is reported.
func (s *Server) certificateResponse(ctx context.Context, cert *certificate.Certificate, source certificate.Source) CertificateResponse {
	resp := CertificateResponse{
		Configured:   true,
		Source:       string(source),
		Filename:     cert.Filename,
		UF:           cert.UF,
		Homologation: cert.Homologation,
		Holder:       cert.Holder.Formatted,
		Subject:      cert.Subject,
		Expired:      cert.Expired(time.Now()),
	}
	if !cert.NotAfter.IsZero() {
		notAfter := cert.NotAfter
		resp.NotAfter = &notAfter
	}

	if s.trust == nil {
		return resp
	}

	leaf, intermediates := cert.Chain()
	chain, err := s.trust.VerifyChain(leaf, intermediates)
	trusted := err == nil
	resp.Trusted = &trusted
	if !trusted || len(chain) < 2 {
		return resp
	}

	notRevoked, err := s.trust.CheckRevocation(ctx, leaf, chain[1])
	if err != nil {
		s.logger.WarnContext(ctx, "revocation check failed", "subject", cert.Subject, "error", err)
		if !s.trust.SoftFail() {
			return resp
		}
	}
	revoked := !notRevoked
	resp.Revoked = &revoked
	return resp
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	if header.Size > maxUploadSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxUploadSize)
	}

	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return data, nil
}
