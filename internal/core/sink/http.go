package sink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/trapmapper/internal/core/logging"
	"github.com/solatis/trapmapper/internal/rules"
)

// KindHTTP names the HTTP sink in errors and logs.
const KindHTTP = "http"

// HTTPConfig configures an HTTP action sink. UserName and Password may be
// "$env:NAME" references, resolved on every call.
type HTTPConfig struct {
	URL      string
	UserName string
	Password string
	Timeout  time.Duration
}

// HTTPSink issues a GET request per record. Positional placeholders {0},
// {1}, ... in the URL are replaced with the query-escaped parameters.
type HTTPSink struct {
	cfg    HTTPConfig
	client *http.Client
	logger *slog.Logger
}

// HTTPOption configures an HTTPSink.
type HTTPOption func(*HTTPSink)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSink) { s.client = c }
}

// WithHTTPLogger sets the sink logger.
func WithHTTPLogger(l *slog.Logger) HTTPOption {
	return func(s *HTTPSink) { s.logger = l }
}

// NewHTTPSink creates an HTTP sink.
func NewHTTPSink(cfg HTTPConfig, opts ...HTTPOption) (*HTTPSink, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http sink: url is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("http sink: invalid url: %w", err)
	}

	s := &HTTPSink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger).With(logging.Sink(KindHTTP))
	return s, nil
}

// Execute sends the request and returns the response status code.
func (s *HTTPSink) Execute(ctx context.Context, params []any) (any, error) {
	target := s.expand(params)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &Error{Kind: KindHTTP, Err: err}
	}

	user := ResolveCredential(s.cfg.UserName)
	pass := ResolveCredential(s.cfg.Password)
	if strings.TrimSpace(user) != "" && strings.TrimSpace(pass) != "" {
		req.SetBasicAuth(user, pass)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindHTTP, Err: err}
	}
	defer resp.Body.Close()

	// Read and discard body to reuse connection
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Kind: KindHTTP, Status: resp.StatusCode, Err: fmt.Errorf("unexpected response %s", resp.Status)}
	}

	s.logger.Debug("http action executed",
		logging.Status(resp.StatusCode),
		logging.Duration(time.Since(start)))
	return resp.StatusCode, nil
}

func (s *HTTPSink) expand(params []any) string {
	if len(params) == 0 {
		return s.cfg.URL
	}
	subs := make([]rules.Substitution, len(params))
	for i, p := range params {
		subs[i] = rules.Sub("{"+strconv.Itoa(i)+"}", url.QueryEscape(rules.FormatValue(p)))
	}
	return rules.Render(s.cfg.URL, subs...)
}
