package melinda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultUserAgent   = "Melinda commons API client / Go"
	defaultContentType = "application/json"
	defaultTimeout     = 60 * time.Second
)

var (
	recordStatuses   = []int{http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusConflict}
	documentStatuses = []int{http.StatusOK, http.StatusCreated}
	logStatuses      = []int{http.StatusOK}
)

// Config describes how to reach and authenticate against a Melinda REST API.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	Cataloger string // optional; default cataloger for prio and bulk operations
	UserAgent string // optional
}

// Option customizes a client during construction.
type Option func(*settings) error

type settings struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	limiter    *rate.Limiter
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) error {
		if hc == nil {
			return errors.New("http client cannot be nil")
		}
		s.httpClient = hc
		return nil
	}
}

// WithTimeout bounds each request from send to the end of the response body.
// Streaming bulk uploads are exempt while the body is being sent; for them the
// timeout only limits the wait for the response headers. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) error {
		if d < 0 {
			return errors.New("timeout cannot be negative")
		}
		s.timeout = d
		return nil
	}
}

// WithLogger routes request tracing to logger. Clients are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

// WithRateLimit caps outgoing requests at rps per second with the given burst.
// A non-positive rps leaves the client unlimited.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *settings) error {
		if rps <= 0 {
			s.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// executor sends requests on behalf of the record and log clients. It is
// immutable after construction and safe for concurrent use.
type executor struct {
	baseURL       string
	authorization string
	userAgent     string
	http          *http.Client
	timeout       time.Duration
	logger        *slog.Logger
	limiter       *rate.Limiter
}

type request struct {
	method      string
	path        string
	params      *Params
	body        io.Reader
	contentType string
	accept      []int
	// stream marks uploads of caller-supplied size, which get no overall
	// deadline.
	stream bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func newExecutor(cfg Config, component string, opts []Option) (*executor, error) {
	base, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	s := settings{timeout: defaultTimeout}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&s); err != nil {
			return nil, err
		}
	}
	if s.httpClient == nil {
		s.httpClient = newHTTPClient(s.timeout)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &executor{
		baseURL:       base,
		authorization: BasicAuthorization(cfg.Username, cfg.Password),
		userAgent:     userAgent,
		http:          s.httpClient,
		timeout:       s.timeout,
		logger:        s.logger.With("component", component),
		limiter:       s.limiter,
	}, nil
}

// newHTTPClient has no overall Timeout so that long uploads are not cut off;
// the transport still bounds the wait for response headers.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

// BasicAuthorization builds the Authorization header value for a user.
func BasicAuthorization(username, password string) string {
	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("base URL cannot be empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String(), nil
}

func (e *executor) do(ctx context.Context, req request) (*response, error) {
	target := e.baseURL + req.path
	if query := req.params.Encode(); query != "" {
		target += "?" + query
	}
	e.logger.Debug("executing request", "method", req.method, "url", target)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, internalError(fmt.Errorf("rate limit: %w", err))
		}
	}

	if e.timeout > 0 && !req.stream {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, req.body)
	if err != nil {
		e.logger.Debug("building request failed", "error", err)
		return nil, internalError(fmt.Errorf("create request: %w", err))
	}
	contentType := req.contentType
	if contentType == "" {
		contentType = defaultContentType
	}
	httpReq.Header.Set("User-Agent", e.userAgent)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", e.authorization)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := e.http.Do(httpReq)
	if err != nil {
		e.logger.Debug("request failed", "error", err)
		return nil, internalError(fmt.Errorf("execute request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.logger.Debug("reading response failed", "error", err)
		return nil, internalError(fmt.Errorf("read response: %w", err))
	}
	e.logger.Debug("response received", "kind", requestKind(req.path), "method", req.method, "status", resp.StatusCode, "bytes", len(body))

	if err := checkStatus(e.logger, resp.StatusCode, body); err != nil {
		return nil, err
	}
	if slices.Contains(req.accept, resp.StatusCode) {
		return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
	}
	e.logger.Debug("unexpected response status", "status", resp.StatusCode, "body", truncate(body, 512))
	return nil, newAPIError(resp.StatusCode, "")
}

// hasDocument reports whether the answer carries the operation's regular
// document. 202 and 409 bodies are handed back raw.
func (r *response) hasDocument() bool {
	return slices.Contains(documentStatuses, r.status)
}

func (e *executor) decode(res *response, dest any) error {
	if err := json.Unmarshal(res.body, dest); err != nil {
		e.logger.Debug("decoding response failed", "error", err)
		return internalError(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func requestKind(path string) string {
	if strings.HasPrefix(path, "bulk/") {
		return "bulk"
	}
	if strings.HasPrefix(path, "logs") {
		return "logs"
	}
	return "prio"
}

func truncate(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "…"
}
