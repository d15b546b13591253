// Package config loads server and authority settings from the environment
// or from a YAML file.
//
// Example file, with ${VAR} expansion:
//
//	addr: ":8080"
//	cert_path: /certs/a1.pfx
//	cert_password: ${CERT_PASSWORD}
//	uf: MG
//	timeout: 45s
//	ca_file: /certs/icp-brasil.pem
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rezonia/sefaz-bridge/internal/fiscal"
)

// Config captures server and authority settings.
type Config struct {
	Addr string `yaml:"addr"`

	// Environment certificate, used when nothing was uploaded
	CertPath     string `yaml:"cert_path"`
	CertPassword string `yaml:"cert_password"`
	UF           string `yaml:"uf"`
	Homologation bool   `yaml:"homologacao"`

	Timeout         time.Duration `yaml:"timeout"`
	StatusURL       string        `yaml:"status_url"`
	DistributionURL string        `yaml:"distribution_url"`
	Manifestation   bool          `yaml:"manifestation"`

	// PEM bundle with the ICP-Brasil chain of the authority endpoints and
	// document signers
	CAFile string `yaml:"ca_file"`
}

// DefaultTimeout bounds each request to the authority.
const DefaultTimeout = 30 * time.Second

// Defaults returns the settings used when nothing else is given
func Defaults() Config {
	return Config{
		Addr:          ":8080",
		UF:            "MG",
		Timeout:       DefaultTimeout,
		Manifestation: true,
	}
}

// Load reads a YAML file, expanding environment variables. Keys missing
// from the file keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.UF = strings.ToUpper(strings.TrimSpace(cfg.UF))

	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if !fiscal.ValidState(c.UF) {
		return fmt.Errorf("unknown state %q", c.UF)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("SEFAZ_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	uf := strings.ToUpper(strings.TrimSpace(os.Getenv("UF")))
	if uf == "" {
		uf = "MG"
	}

	timeout := DefaultTimeout
	if v := os.Getenv("SEFAZ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			timeout = d
		} else if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			timeout = time.Duration(secs) * time.Second
		}
	}

	return Config{
		Addr:            addr,
		CertPath:        os.Getenv("CERT_PATH"),
		CertPassword:    os.Getenv("CERT_PASSWORD"),
		UF:              uf,
		Homologation:    parseBool(os.Getenv("HOMOLOGACAO")),
		Timeout:         timeout,
		StatusURL:       os.Getenv("SEFAZ_STATUS_URL"),
		DistributionURL: os.Getenv("SEFAZ_DISTRIBUTION_URL"),
		Manifestation:   os.Getenv("SEFAZ_MANIFESTATION") != "false",
		CAFile:          os.Getenv("SEFAZ_CA_FILE"),
	}
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}
