package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// TLSOptions configures transport security for outbound provider
// calls. Only self-hosted dependencies need it, typically a search
// gateway behind a private CA; the hosted APIs all present publicly
// trusted certificates.
type TLSOptions struct {
	// CAFile points at a PEM bundle that replaces the system roots.
	CAFile string

	// InsecureSkipVerify disables certificate verification entirely.
	// Development only.
	InsecureSkipVerify bool
}

// WithTLS rebuilds the client transport according to opts. Zero
// options leave the default transport untouched; a broken CA bundle is
// logged and ignored rather than breaking the client.
func WithTLS(opts *TLSOptions) Option {
	return func(c *Client) {
		if opts == nil || (opts.CAFile == "" && !opts.InsecureSkipVerify) {
			return
		}
		transport, err := tlsTransport(opts)
		if err != nil {
			slog.Warn("Ignoring TLS options, keeping default transport", "error", err)
			return
		}
		if c.hc == nil {
			c.hc = &http.Client{Timeout: 60 * time.Second}
		}
		c.hc.Transport = transport
	}
}

func tlsTransport(opts *TLSOptions) (*http.Transport, error) {
	cfg := &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}

	if opts.CAFile != "" {
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA bundle %s: %w", opts.CAFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates parsed from %s", opts.CAFile)
		}
		cfg.RootCAs = pool
	}

	return &http.Transport{TLSClientConfig: cfg}, nil
}
