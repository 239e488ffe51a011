// Package auth authenticates API callers by API key.
package auth

import (
	"context"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/smartcost/backend/internal/apierrors"
)

// HeaderName is the request header carrying the API key.
const HeaderName = "X-API-Key"

type contextKey int

const keyIndexContextKey contextKey = iota

// KeySet holds the bcrypt hashes of the accepted API keys.
type KeySet struct {
	hashes [][]byte
}

// NewKeySet creates a KeySet from bcrypt hashes.
func NewKeySet(hashes []string) *KeySet {
	ks := &KeySet{hashes: make([][]byte, 0, len(hashes))}
	for _, h := range hashes {
		ks.hashes = append(ks.hashes, []byte(h))
	}
	return ks
}

// Match returns the index of the hash matching key, or -1.
func (ks *KeySet) Match(key string) int {
	if key == "" {
		return -1
	}
	for i, h := range ks.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(key)) == nil {
			return i
		}
	}
	return -1
}

// HashAPIKey returns the bcrypt hash to configure for key.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Middleware rejects requests whose X-API-Key does not match any key in ks.
func Middleware(ks *KeySet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderName)
			if key == "" {
				apierrors.NewUnauthorizedError("missing API key").Write(w, r)
				return
			}

			idx := ks.Match(key)
			if idx < 0 {
				apierrors.NewUnauthorizedError("invalid API key").Write(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), keyIndexContextKey, idx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyIndexFromContext returns which configured key authenticated the request.
func KeyIndexFromContext(ctx context.Context) (int, bool) {
	idx, ok := ctx.Value(keyIndexContextKey).(int)
	return idx, ok
}
