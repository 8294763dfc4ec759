// Package idempotency guards the mutating combo endpoints against retries.
// Confirming a combo and opening a checkout session both create records the
// shopper must not be able to duplicate by replaying a request, so those
// routes require an Idempotency-Key header and replay the stored response
// when the same key arrives again.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long a completed record stays replayable. Combo confirms
// and checkout retries happen within minutes; a day is generous.
const DefaultTTL = 24 * time.Hour

// Status is the lifecycle state of a stored record.
type Status string

const (
	// StatusPending marks a key that is reserved while the first request runs.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response is stored and replayable.
	StatusCompleted Status = "completed"
)

// ReservationState is the outcome of trying to reserve a key.
type ReservationState int

const (
	// ReservationStateNew: the key is fresh, the caller owns it and proceeds.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted: a stored response exists and must be replayed.
	ReservationStateCompleted
	// ReservationStatePending: another request holds the key right now.
	ReservationStatePending
)

// Reservation is the result of Reserve, carrying the stored record when one exists.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the persisted response for an idempotency key.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the handler output captured for later replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists key reservations and their responses.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch is returned when a key is reused with a different
// request body or target, which would silently replay the wrong combo.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

// recordID derives the document identifier from the scoped key. The
// fingerprint is stored on the record and checked there, not mixed into
// the identifier, so a mismatched retry finds the original and conflicts.
func recordID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeaders copies the response headers worth replaying, dropping
// hop-by-hop and freshness headers that must be regenerated per response.
func storableHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}

	kept := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if isPerResponseHeader(canonical) {
			continue
		}
		kept[canonical] = append([]string(nil), values...)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func isPerResponseHeader(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "connection", "keep-alive",
		"proxy-authenticate", "proxy-authorization",
		"te", "trailers", "transfer-encoding", "upgrade":
		return true
	}
	return false
}

func replayHeaders(values map[string][]string) http.Header {
	header := make(http.Header, len(values))
	for name, vals := range values {
		header[name] = append([]string(nil), vals...)
	}
	return header
}
