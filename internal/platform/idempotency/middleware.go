package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adega-club/api/internal/platform/auth"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
)

// Logger receives persistence failures the middleware cannot surface to the client.
type Logger interface {
	Printf(format string, args ...any)
}

type guardConfig struct {
	headerName string
	ttl        time.Duration
	clock      func() time.Time
	logger     Logger
}

// MiddlewareOption customises the guard.
type MiddlewareOption func(*guardConfig)

// WithHeader overrides the header carrying the idempotency key.
func WithHeader(name string) MiddlewareOption {
	return func(cfg *guardConfig) {
		if name = strings.TrimSpace(name); name != "" {
			cfg.headerName = name
		}
	}
}

// WithTTL sets how long completed records stay replayable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *guardConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithLogger injects a logger for store failures.
func WithLogger(logger Logger) MiddlewareOption {
	return func(cfg *guardConfig) {
		cfg.logger = logger
	}
}

// WithClock overrides the time source for tests.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(cfg *guardConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware returns a middleware that requires an Idempotency-Key on
// mutating requests and replays the stored response for repeated keys.
// Keys are scoped to the authenticated shopper, so two shoppers reusing
// the same key value never collide.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := guardConfig{
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(cfg.headerName))
			if key == "" {
				writeGuardError(w, http.StatusBadRequest, "idempotency_key_required", "missing idempotency key header")
				return
			}

			body, err := bufferRequestBody(r)
			if err != nil {
				writeGuardError(w, http.StatusInternalServerError, "idempotency_read_body_failed", "unable to read request body")
				return
			}

			requester := requesterID(r.Context())
			fingerprint := requestFingerprint(r, body, requester)
			scoped := scopeKey(key, requester)
			now := cfg.clock().UTC()

			reservation, err := store.Reserve(r.Context(), scoped, fingerprint, now, cfg.ttl)
			if err != nil {
				if errors.Is(err, ErrFingerprintMismatch) {
					writeGuardError(w, http.StatusConflict, "idempotency_key_conflict", "idempotency key already used for a different request")
					return
				}
				if cfg.logger != nil {
					cfg.logger.Printf("idempotency: store error: %v", err)
				}
				writeGuardError(w, http.StatusInternalServerError, "idempotency_store_error", "unable to process idempotency key")
				return
			}

			switch reservation.State {
			case ReservationStateCompleted:
				replayStored(w, reservation.Record)
				return
			case ReservationStatePending:
				writeGuardError(w, http.StatusConflict, "idempotency_in_progress", "another request is processing this idempotency key")
				return
			case ReservationStateNew:
			default:
				writeGuardError(w, http.StatusInternalServerError, "idempotency_unknown_state", "unexpected idempotency state")
				return
			}

			// Buffer the handler response so it is stored before the client
			// sees it. A response the store never saw must not be sent, or a
			// retry would rerun the confirm instead of replaying.
			buffer := newReplayBuffer(w)
			next.ServeHTTP(buffer, r)

			response := Response{
				Status:  buffer.Status(),
				Headers: buffer.HeaderSnapshot(),
				Body:    buffer.Body(),
			}

			if err := store.SaveResponse(r.Context(), scoped, fingerprint, response, cfg.clock().UTC(), cfg.ttl); err != nil {
				if cfg.logger != nil {
					cfg.logger.Printf("idempotency: failed to persist response for key %s (requester %s): %v", key, requester, err)
				}
				if releaseErr := store.Release(r.Context(), scoped, fingerprint); releaseErr != nil && cfg.logger != nil {
					cfg.logger.Printf("idempotency: failed to release key %s after save failure: %v", key, releaseErr)
				}
				writeGuardError(w, http.StatusInternalServerError, "idempotency_store_error", "unable to persist idempotency state")
				return
			}

			if err := buffer.Flush(); err != nil && cfg.logger != nil {
				cfg.logger.Printf("idempotency: failed to flush response for key %s: %v", key, err)
			}
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func bufferRequestBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// requestFingerprint binds a key to the exact request that first used it.
// Method, path, query, host, content type, requester and body hash all
// participate, so reusing a key for a different combo payload conflicts.
func requestFingerprint(r *http.Request, body []byte, requester string) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Host,
		r.Header.Get("Content-Type"),
		requester,
	}
	if len(body) > 0 {
		parts = append(parts, sha256Hex(body))
	} else {
		parts = append(parts, "")
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

func requesterID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UID != "" {
		return identity.UID
	}
	if svc, ok := auth.ServiceIdentityFromContext(ctx); ok && svc != nil && svc.Subject != "" {
		return svc.Subject
	}
	return "anonymous"
}

func scopeKey(key, requester string) string {
	key = strings.TrimSpace(key)
	requester = strings.TrimSpace(requester)
	if requester == "" {
		requester = "anonymous"
	}
	if key == "" {
		return requester
	}
	return key + "|" + requester
}

func replayStored(w http.ResponseWriter, record Record) {
	for key := range w.Header() {
		w.Header().Del(key)
	}
	for key, values := range replayHeaders(record.ResponseHeaders) {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

func writeGuardError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
	})
}

// replayBuffer captures the handler's response without writing it to the
// client until the store has persisted it.
type replayBuffer struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func newReplayBuffer(parent http.ResponseWriter) *replayBuffer {
	return &replayBuffer{parent: parent, header: make(http.Header)}
}

func (b *replayBuffer) Header() http.Header {
	return b.header
}

func (b *replayBuffer) WriteHeader(status int) {
	if status <= 0 {
		status = http.StatusOK
	}
	b.status = status
}

func (b *replayBuffer) Write(data []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *replayBuffer) Status() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *replayBuffer) Body() []byte {
	if b.body.Len() == 0 {
		return nil
	}
	return b.body.Bytes()
}

func (b *replayBuffer) HeaderSnapshot() http.Header {
	snapshot := make(http.Header, len(b.header))
	for key, values := range b.header {
		snapshot[key] = append([]string(nil), values...)
	}
	return snapshot
}

// Flush writes the buffered response to the underlying writer.
func (b *replayBuffer) Flush() error {
	dst := b.parent.Header()
	for key := range dst {
		dst.Del(key)
	}
	for key, values := range b.header {
		for _, value := range values {
			dst.Add(key, value)
		}
	}

	b.parent.WriteHeader(b.Status())
	if b.body.Len() == 0 {
		return nil
	}
	_, err := b.parent.Write(b.body.Bytes())
	return err
}
