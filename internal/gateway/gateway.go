// Package gateway is the single choke point for all outbound calls to the
// backend. It deduplicates superseded requests per fingerprint, injects the
// session credential, attaches deadlines, classifies failures, and tears the
// session down on authentication failure.
//
// DESIGN:
//   - descriptor.go: Descriptor and fingerprint derivation
//   - errors.go:     failure taxonomy (APIError)
//   - gateway.go:    in-flight registry, Send, classification
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/promptshield/console-client/internal/config"
	"github.com/promptshield/console-client/internal/session"
	"github.com/promptshield/console-client/internal/telemetry"
	"github.com/promptshield/console-client/internal/utils"
)

const userAgent = "promptshield-console/1.0"

// Gateway is the only component permitted to perform network I/O toward the
// backend. At most one network call per fingerprint is ever in flight;
// callers never need their own debouncing.
type Gateway struct {
	baseURL      string
	authScheme   string
	session      *session.Store
	httpClient   *http.Client
	audit        *telemetry.Log
	log          zerolog.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration

	// onUnauthorized fires at most once per authenticated session, when a
	// 401 tears the session down. The UI layer registers its login redirect
	// here.
	onUnauthorized func()

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

// inflightCall is the cancellation handle registered per fingerprint.
type inflightCall struct {
	cancel context.CancelFunc
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.httpClient = c }
}

// WithAudit enables the JSONL request audit log.
func WithAudit(l *telemetry.Log) Option {
	return func(g *Gateway) { g.audit = l }
}

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gateway) { g.log = l }
}

// WithUnauthorizedHook registers the redirect side effect fired on session
// teardown.
func WithUnauthorizedHook(fn func()) Option {
	return func(g *Gateway) { g.onUnauthorized = fn }
}

// WithTimeouts overrides the default deadline policy: read applies to GETs,
// write to everything else. Non-positive values keep the defaults.
func WithTimeouts(read, write time.Duration) Option {
	return func(g *Gateway) {
		if read > 0 {
			g.readTimeout = read
		}
		if write > 0 {
			g.writeTimeout = write
		}
	}
}

// New creates a Gateway talking to baseURL. authScheme selects how the
// credential is carried (config.AuthSchemeBearer or config.AuthSchemeToken).
func New(baseURL, authScheme string, sess *session.Store, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:      baseURL,
		authScheme:   authScheme,
		session:      sess,
		httpClient:   &http.Client{},
		readTimeout:  config.DefaultReadTimeout,
		writeTimeout: config.DefaultWriteTimeout,
		inflight:     make(map[string]*inflightCall),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Send issues the described request and returns the raw response body.
//
// If a call with the same fingerprint is already in flight it is canceled
// first (last-writer-wins); the superseded caller receives a KindCanceled
// error with SuppressUserMessage set. The registry entry is removed when the
// request settles, on every path.
func (g *Gateway) Send(ctx context.Context, d Descriptor) ([]byte, error) {
	fp := d.Fingerprint()

	reqCtx, cancel := context.WithTimeout(ctx, g.timeoutFor(d))
	call := &inflightCall{cancel: cancel}

	g.mu.Lock()
	if prev := g.inflight[fp]; prev != nil {
		// Superseded, not retried: the newest request for this endpoint wins.
		prev.cancel()
	}
	g.inflight[fp] = call
	g.mu.Unlock()

	requestID := uuid.NewString()
	started := time.Now()

	body, reqBody, err := g.do(reqCtx, requestID, d)

	// Unconditional cleanup, but only of our own entry: a superseded call
	// settling late must not evict its successor.
	g.mu.Lock()
	if g.inflight[fp] == call {
		delete(g.inflight, fp)
	}
	g.mu.Unlock()
	cancel()

	g.record(requestID, d, fp, reqBody, started, err)

	if err != nil {
		return nil, err
	}
	return body, nil
}

// SendJSON issues the request and decodes the response body into out.
func (g *Gateway) SendJSON(ctx context.Context, d Descriptor, out any) error {
	body, err := g.Send(ctx, d)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Kind: KindServerError, Message: fmt.Sprintf("parsing response: %v", err)}
	}
	return nil
}

// InFlight returns the number of registered in-flight calls.
func (g *Gateway) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight)
}

// do builds and executes the HTTP request, returning the response body, the
// request body that was sent (for auditing), and a classified error.
func (g *Gateway) do(ctx context.Context, requestID string, d Descriptor) ([]byte, []byte, error) {
	target := g.baseURL + d.Path
	if len(d.Query) > 0 {
		target += "?" + d.Query.Encode()
	}

	var reqBody []byte
	contentType := ""
	switch {
	case len(d.RawBody) > 0:
		reqBody = d.RawBody
		contentType = d.ContentType
	case d.Body != nil:
		var err error
		reqBody, err = utils.MarshalNoEscape(d.Body)
		if err != nil {
			return nil, nil, &APIError{Kind: KindValidation, Message: fmt.Sprintf("encoding request: %v", err), SuppressUserMessage: d.Quiet}
		}
		contentType = "application/json"
	}

	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, target, bodyReader)
	if err != nil {
		return nil, reqBody, &APIError{Kind: KindNetworkError, Message: fmt.Sprintf("creating request: %v", err), SuppressUserMessage: d.Quiet}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Request-ID", requestID)
	for k, v := range d.Header {
		req.Header.Set(k, v)
	}
	// The credential is read synchronously from the session store on every
	// request; a Save or Clear is visible to the very next call.
	if credential := g.session.Credential(); credential != "" {
		req.Header.Set("Authorization", authHeader(g.authScheme, credential))
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, reqBody, g.classifyTransport(err, d)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, reqBody, g.classifyTransport(err, d)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, reqBody, nil
	}
	return nil, reqBody, g.classifyStatus(resp.StatusCode, body, d)
}

// classifyTransport maps transport-level failures. Cancellation and timeout
// are distinguished from each other and from genuine network failures.
func (g *Gateway) classifyTransport(err error, d Descriptor) *APIError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &APIError{Kind: KindTimeout, Message: "request timed out, check backend availability", SuppressUserMessage: d.Quiet}
	case errors.Is(err, context.Canceled):
		// Superseded by a newer same-fingerprint request (or the caller went
		// away). Deliberately not surfaced as a user-visible error.
		return &APIError{Kind: KindCanceled, Message: "request superseded", SuppressUserMessage: true}
	default:
		return &APIError{Kind: KindNetworkError, Message: "backend unreachable, check network", SuppressUserMessage: d.Quiet}
	}
}

// classifyStatus maps HTTP failure statuses to the error taxonomy. The error
// body, when JSON, carries the human-readable text in "message" or "detail"
// and validation errors in "errors".
func (g *Gateway) classifyStatus(status int, body []byte, d Descriptor) *APIError {
	msg := errorMessage(status, body)

	switch {
	case status == http.StatusUnauthorized:
		if !d.Quiet {
			g.teardownSession()
		}
		// Handled globally via session teardown; per-request surfaces stay
		// quiet to avoid message spam.
		return &APIError{Kind: KindUnauthorized, Status: status, Message: msg, SuppressUserMessage: true}
	case status == http.StatusForbidden:
		return &APIError{Kind: KindForbidden, Status: status, Message: msg, SuppressUserMessage: d.Quiet}
	case status == http.StatusNotFound:
		return &APIError{Kind: KindNotFound, Status: status, Message: msg, SuppressUserMessage: d.Quiet}
	case status >= 500:
		return &APIError{Kind: KindServerError, Status: status, Message: msg, SuppressUserMessage: d.Quiet}
	default:
		return &APIError{Kind: KindValidation, Status: status, Message: msg, Fields: fieldErrors(body), SuppressUserMessage: d.Quiet}
	}
}

// teardownSession clears the session and fires the redirect hook. The hook
// fires exactly once even when several requests receive 401 concurrently:
// only the call that actually tore down an authenticated session proceeds.
func (g *Gateway) teardownSession() {
	if !g.session.Clear() {
		return
	}
	g.log.Warn().Msg("gateway: authentication failed, session cleared")
	if g.onUnauthorized != nil {
		g.onUnauthorized()
	}
}

// record writes the settlement to the audit log.
func (g *Gateway) record(requestID string, d Descriptor, fp string, reqBody []byte, started time.Time, err error) {
	if g.audit == nil {
		return
	}
	ev := &telemetry.RequestEvent{
		Timestamp:   time.Now(),
		RequestID:   requestID,
		Method:      d.Method,
		Path:        d.Path,
		Fingerprint: fp,
		DurationMs:  time.Since(started).Milliseconds(),
	}
	if len(reqBody) > 0 && len(reqBody) <= config.MaxAuditBodyLen {
		ev.Body = reqBody
	}
	if err != nil {
		apiErr := AsAPIError(err)
		ev.Kind = string(apiErr.Kind)
		ev.Status = apiErr.Status
	}
	g.audit.Record(ev)
}

// timeoutFor applies the deadline policy: short for reads, generous for
// writes, always overridable per descriptor.
func (g *Gateway) timeoutFor(d Descriptor) time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	if d.Method == http.MethodGet {
		return g.readTimeout
	}
	return g.writeTimeout
}

// authHeader formats the Authorization value per the configured scheme.
// The backend decides which scheme it issues; this is deployment config.
func authHeader(scheme, credential string) string {
	if scheme == config.AuthSchemeToken {
		return credential
	}
	return "Bearer " + credential
}

// errorMessage extracts human-readable error text from a response body.
func errorMessage(status int, body []byte) string {
	if gjson.ValidBytes(body) {
		if m := gjson.GetBytes(body, "message"); m.Exists() && m.String() != "" {
			return m.String()
		}
		if m := gjson.GetBytes(body, "detail"); m.Exists() && m.String() != "" {
			return m.String()
		}
	}
	return http.StatusText(status)
}

// fieldErrors parses structured validation errors of the shape
// {"errors": {"field": ["msg", ...]}}. Returns nil when absent.
func fieldErrors(body []byte) map[string][]string {
	if !gjson.ValidBytes(body) {
		return nil
	}
	raw := gjson.GetBytes(body, "errors")
	if !raw.Exists() || !raw.IsObject() {
		return nil
	}
	fields := make(map[string][]string)
	raw.ForEach(func(key, value gjson.Result) bool {
		if value.IsArray() {
			for _, v := range value.Array() {
				fields[key.String()] = append(fields[key.String()], v.String())
			}
		} else {
			fields[key.String()] = append(fields[key.String()], value.String())
		}
		return true
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
