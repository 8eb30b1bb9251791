package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

// TimeoutClass selects the per-request timeout.
type TimeoutClass int

const (
	TimeoutDefault TimeoutClass = iota
	TimeoutAuth
	TimeoutUpload
)

// Timeouts holds one deadline per [TimeoutClass].
type Timeouts struct {
	Default time.Duration
	Auth    time.Duration
	Upload  time.Duration
}

func (t Timeouts) For(c TimeoutClass) time.Duration {
	switch c {
	case TimeoutAuth:
		return t.Auth
	case TimeoutUpload:
		return t.Upload
	default:
		return t.Default
	}
}

// Options configures a [Client].
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenStore
	Logger     *log.Logger
	Timeouts   Timeouts
	RateLimit  float64 // requests per second, 0 disables
	RateBurst  int
}

// OptionsFromConfig maps the [shared.APIConfig] section onto [Options].
func OptionsFromConfig(cfg shared.APIConfig) Options {
	return Options{
		BaseURL:   cfg.BaseURL,
		Timeouts:  Timeouts{Default: cfg.Timeout(), Auth: cfg.AuthTimeout(), Upload: cfg.UploadTimeout()},
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	}
}

// Client is safe for concurrent use.
type Client struct {
	baseURL  string
	http     *http.Client
	tokens   TokenStore
	logger   *log.Logger
	timeouts Timeouts
	limiter  *rate.Limiter
	refresh  singleflight.Group
	now      func() time.Time

	mu             sync.RWMutex
	tok            *oauth2.Token
	loaded         bool
	onSessionEnded []func(error)
}

// NewClient creates a client. A nil TokenStore keeps tokens in memory only.
func NewClient(opts Options) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Tokens == nil {
		opts.Tokens = NewMemoryTokens(nil)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewDiscardLogger()
	}
	if opts.Timeouts.Default <= 0 {
		opts.Timeouts.Default = 30 * time.Second
	}
	if opts.Timeouts.Auth <= 0 {
		opts.Timeouts.Auth = 10 * time.Second
	}
	if opts.Timeouts.Upload <= 0 {
		opts.Timeouts.Upload = 10 * time.Minute
	}

	c := &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     opts.HTTPClient,
		tokens:   opts.Tokens,
		logger:   shared.WithLogger(opts.Logger, "component", "api"),
		timeouts: opts.Timeouts,
		now:      time.Now,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// BaseURL returns the configured API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// URL resolves path against the base URL and appends q.
func (c *Client) URL(path string, q url.Values) string {
	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(q) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + q.Encode()
	}
	return u
}

// OnSessionEnded registers fn to run after a failed refresh clears the tokens.
func (c *Client) OnSessionEnded(fn func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSessionEnded = append(c.onSessionEnded, fn)
}

// Token returns the current token pair, loading it from the store on first use.
func (c *Client) Token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.RLock()
	if c.loaded {
		tok := c.tok
		c.mu.RUnlock()
		return tok, nil
	}
	c.mu.RUnlock()

	tok, err := c.tokens.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.tok, c.loaded = tok, true
	}
	return c.tok, nil
}

// SetTokens stores a new pair, typically after login or registration.
func (c *Client) SetTokens(ctx context.Context, tok *oauth2.Token) error {
	if err := c.tokens.Save(ctx, tok); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	c.mu.Lock()
	c.tok, c.loaded = tok, true
	c.mu.Unlock()
	return nil
}

// ClearTokens forgets the pair locally and in the store.
func (c *Client) ClearTokens(ctx context.Context) error {
	c.mu.Lock()
	c.tok, c.loaded = nil, true
	c.mu.Unlock()
	if err := c.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// AccessTokenExpired reports whether the held access token's decoded expiry has passed.
func (c *Client) AccessTokenExpired(ctx context.Context) bool {
	tok, err := c.Token(ctx)
	if err != nil || tok == nil {
		return false
	}
	return Expired(tok, c.now())
}

// RequestOption customizes a single call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	query   url.Values
	header  http.Header
	timeout TimeoutClass
	auth    bool
}

// WithQuery appends q to the request URL.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) { o.query = q }
}

// WithHeader sets an extra request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.header.Set(key, value) }
}

func WithTimeout(class TimeoutClass) RequestOption {
	return func(o *requestOptions) { o.timeout = class }
}

// SkipAuth sends the request without a bearer token and disables refresh-and-retry on 401.
func SkipAuth() RequestOption {
	return func(o *requestOptions) { o.auth = false }
}

func buildOptions(opts []RequestOption) requestOptions {
	ro := requestOptions{header: http.Header{}, auth: true}
	for _, opt := range opts {
		opt(&ro)
	}
	return ro
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

// bodyFunc produces a fresh request body per attempt.
type bodyFunc func() (io.Reader, string, error)

func jsonBody(v any) (bodyFunc, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "failed to encode request body", Err: err}
	}
	return func() (io.Reader, string, error) {
		return bytes.NewReader(data), "application/json", nil
	}, nil
}

// Do sends method path with body encoded as JSON and decodes the envelope's data into out.
//
// out may be nil. Every failure is an [*Error].
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: KindUnknown, Message: fmt.Sprintf("panic during request: %v", r)}
		}
	}()

	bf, err := jsonBody(body)
	if err != nil {
		return err
	}
	_, err = c.execute(ctx, method, path, buildOptions(opts), bf, out)
	return err
}

func (c *Client) Get(ctx context.Context, path string, q url.Values, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, append(opts, WithQuery(q))...)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// execute runs the request with at most one refresh-and-retry. It returns the final status.
func (c *Client) execute(ctx context.Context, method, path string, ro requestOptions, body bodyFunc, out any) (int, error) {
	if c.baseURL == "" {
		return 0, &Error{Kind: KindConfig, Message: "api base url is not configured"}
	}

	if ro.auth {
		if err := c.preflight(ctx); err != nil {
			return 0, err
		}
	}

	retried := false
	for {
		sent := ""
		if ro.auth {
			if tok, err := c.Token(ctx); err == nil && tok != nil {
				sent = tok.AccessToken
			}
		}

		status, data, reqID, err := c.send(ctx, method, path, ro, body, sent)
		if err != nil {
			return status, err
		}

		if status == http.StatusUnauthorized && ro.auth && !retried {
			retried = true
			if err := c.refreshAfter(ctx, sent); err != nil {
				return status, err
			}
			continue
		}

		return status, decode(status, data, reqID, out)
	}
}

func (c *Client) send(ctx context.Context, method, path string, ro requestOptions, body bodyFunc, bearer string) (int, []byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.For(ro.timeout))
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, "", &Error{Kind: KindNetwork, Message: "rate limiter: " + err.Error(), Err: err}
		}
	}

	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		var err error
		if reader, contentType, err = body(); err != nil {
			return 0, nil, "", normalize(err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, ro.query), reader)
	if err != nil {
		// streamed bodies have a writer blocked on the other end
		if rc, ok := reader.(io.Closer); ok {
			rc.Close()
		}
		return 0, nil, "", &Error{Kind: KindConfig, Message: "failed to create request", Err: err}
	}

	reqID := uuid.NewString()
	for k, vs := range ro.header {
		req.Header[k] = vs
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := c.now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return 0, nil, reqID, &Error{Kind: KindNetwork, Message: "request failed", RequestID: reqID, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, reqID, &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: "failed to read response", RequestID: reqID, Err: err}
	}

	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode,
		"duration", time.Since(start), "request_id", reqID)
	return resp.StatusCode, data, reqID, nil
}

func decode(status int, data []byte, reqID string, out any) error {
	var env envelope
	hasEnvelope := len(bytes.TrimSpace(data)) > 0 && json.Unmarshal(data, &env) == nil

	if status < 200 || status > 299 {
		e := &Error{Kind: KindFromStatus(status), Status: status, RequestID: reqID}
		if hasEnvelope && len(env.Error) > 0 {
			var body errorBody
			if json.Unmarshal(env.Error, &body) == nil {
				e.Code, e.Message, e.Fields = body.Code, body.Message, body.Fields
			} else {
				var msg string
				if json.Unmarshal(env.Error, &msg) == nil {
					e.Message = msg
				}
			}
		}
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	payload := data
	if hasEnvelope && len(env.Data) > 0 {
		payload = env.Data
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &Error{Kind: KindUnknown, Status: status, Message: "failed to decode response", RequestID: reqID, Err: err}
	}
	return nil
}

func (c *Client) preflight(ctx context.Context) error {
	tok, err := c.Token(ctx)
	if err != nil || tok == nil || tok.RefreshToken == "" {
		return nil
	}
	if !Expired(tok, c.now()) {
		return nil
	}
	c.logger.Debug("access token expired, refreshing before request")
	return c.refreshAfter(ctx, tok.AccessToken)
}

// Refresh exchanges the stored refresh token for a new pair.
func (c *Client) Refresh(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return nil, normalize(err)
	}
	sent := ""
	if tok != nil {
		sent = tok.AccessToken
	}
	if err := c.refreshAfter(ctx, sent); err != nil {
		return nil, err
	}
	return c.Token(ctx)
}

// refreshAfter refreshes unless the token that drew the 401 was already replaced.
// Concurrent callers share one in-flight refresh.
func (c *Client) refreshAfter(ctx context.Context, sent string) error {
	ch := c.refresh.DoChan("refresh", func() (any, error) {
		cur, err := c.Token(ctx)
		if err == nil && cur != nil && sent != "" && cur.AccessToken != sent {
			return cur, nil
		}
		return c.doRefresh(context.WithoutCancel(ctx), cur)
	})

	select {
	case <-ctx.Done():
		return normalize(ctx.Err())
	case res := <-ch:
		return res.Err
	}
}

func (c *Client) doRefresh(ctx context.Context, cur *oauth2.Token) (*oauth2.Token, error) {
	if cur == nil || cur.RefreshToken == "" {
		if cur != nil {
			c.endSession(ctx, shared.ErrNoRefreshToken)
		}
		return nil, &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: "authentication required", Err: shared.ErrNotAuthenticated}
	}

	bf, _ := jsonBody(map[string]string{"refreshToken": cur.RefreshToken})
	ro := buildOptions([]RequestOption{SkipAuth(), WithTimeout(TimeoutAuth)})

	var resp models.AuthResponse
	status, data, reqID, err := c.send(ctx, http.MethodPost, "/auth/refresh", ro, bf, "")
	if err == nil {
		err = decode(status, data, reqID, &resp)
	}
	if err == nil && resp.AccessToken == "" {
		err = &Error{Kind: KindAuth, Status: status, Message: "refresh returned no access token"}
	}
	if err != nil {
		c.logger.Warn("token refresh failed, ending session", "err", err)
		c.endSession(ctx, err)
		return nil, &Error{Kind: KindAuth, Status: http.StatusUnauthorized, Message: "session expired", Err: errors.Join(shared.ErrSessionExpired, err)}
	}

	refresh := resp.RefreshToken
	if refresh == "" {
		refresh = cur.RefreshToken
	}
	tok := NewToken(resp.AccessToken, refresh)
	if err := c.SetTokens(ctx, tok); err != nil {
		return nil, normalize(err)
	}
	c.logger.Debug("token refreshed", "expiry", tok.Expiry)
	return tok, nil
}

func (c *Client) endSession(ctx context.Context, cause error) {
	if err := c.ClearTokens(ctx); err != nil {
		c.logger.Error("failed to clear tokens", "err", err)
	}
	c.mu.RLock()
	hooks := append([]func(error){}, c.onSessionEnded...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(cause)
	}
}

// TokenSource exposes the client's tokens as an [oauth2.TokenSource], refreshing expired ones.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &clientTokenSource{ctx: ctx, c: c}
}

type clientTokenSource struct {
	ctx context.Context
	c   *Client
}

func (s *clientTokenSource) Token() (*oauth2.Token, error) {
	if err := s.c.preflight(s.ctx); err != nil {
		return nil, err
	}
	tok, err := s.c.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return tok, nil
}
