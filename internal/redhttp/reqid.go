package redhttp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// RequestID is the ID of a request.  It is an opaque, randomly generated
// string.  API users should not rely on it being pseudorandom or
// cryptographically random.
type RequestID string

// NewRequestID returns a new pseudorandom RequestID.  Prefer this to manual
// conversion from other string types.
func NewRequestID() (id RequestID) {
	// Generate a random 16-byte (128-bit) number, encode it into a URL-safe
	// Base64 string, and return it.
	const N = 16

	var idData [N]byte
	_, err := rand.Read(idData[:])
	if err != nil {
		panic(fmt.Errorf("generating random request id: %w", err))
	}

	enc := base64.URLEncoding.WithPadding(base64.NoPadding)
	n := enc.EncodedLen(N)
	idData64 := make([]byte, n)
	enc.Encode(idData64, idData[:])

	return RequestID(idData64)
}

// type check
var _ fmt.Stringer = RequestID("")

// String implements the fmt.Stringer interface for RequestID.
func (id RequestID) String() (s string) {
	return string(id)
}

// ctxKey is the type for all common context keys.
type ctxKey uint8

const (
	ctxKeyReqID ctxKey = iota
)

// type check
var _ fmt.Stringer = ctxKey(0)

// String implements the fmt.Stringer interface for ctxKey.
func (k ctxKey) String() (s string) {
	switch k {
	case ctxKeyReqID:
		return "ctxKeyReqID"
	default:
		panic(fmt.Errorf("bad ctx key value %d", k))
	}
}

// panicBadType is a helper that panics with a message about the context key
// and the expected type.
func panicBadType(key ctxKey, v any) {
	panic(fmt.Errorf("bad type for %s: %T(%[2]v)", key, v))
}

// WithRequestID returns a copy of the parent context with the request ID
// added.
func WithRequestID(parent context.Context, id RequestID) (ctx context.Context) {
	return context.WithValue(parent, ctxKeyReqID, id)
}

// RequestIDFromContext returns the request ID from the context, if any.
func RequestIDFromContext(ctx context.Context) (id RequestID, ok bool) {
	const key = ctxKeyReqID
	v := ctx.Value(key)
	if v == nil {
		return "", false
	}

	id, ok = v.(RequestID)
	if !ok {
		panicBadType(key, v)
	}

	return id, true
}
