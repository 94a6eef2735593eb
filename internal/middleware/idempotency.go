// Package middleware provides shared HTTP middleware utilities.
package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"bgref/pkg/errors"
	"bgref/pkg/logger"
)

const (
	idempotencyWaitStep  = 100 * time.Millisecond
	idempotencyWaitSteps = 50
	maxCapturedBody      = 1 << 20
)

// IdempotencyMiddleware replays the stored response of a mutating request
// retried with the same Idempotency-Key.
type IdempotencyMiddleware struct {
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewIdempotencyMiddleware constructs an IdempotencyMiddleware with a TTL.
func NewIdempotencyMiddleware(cache *redis.Client, ttl time.Duration, log logger.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		cache:  cache,
		ttl:    ttl,
		logger: log,
	}
}

// Apply deduplicates POST/PUT requests that carry an Idempotency-Key header.
// Requests without the header pass through. Keys are scoped to the wallet.
func (m *IdempotencyMiddleware) Apply(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		walletID, _ := WalletIDFromContext(r.Context())
		dataKey := fmt.Sprintf("idempotency:data:%d:%s:%s", walletID, r.Method, key)
		lockKey := fmt.Sprintf("idempotency:lock:%d:%s:%s", walletID, r.Method, key)

		if m.replayCached(w, r, dataKey) {
			return
		}

		ok, err := m.cache.SetNX(r.Context(), lockKey, RequestIDFromContext(r.Context()), m.ttl).Result()
		if err != nil {
			m.logger.Error("Idempotency lock failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
			jsonError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		if !ok {
			// Another request with this key is in flight; wait for its response.
			for i := 0; i < idempotencyWaitSteps; i++ {
				select {
				case <-r.Context().Done():
					return
				case <-time.After(idempotencyWaitStep):
				}
				if m.replayCached(w, r, dataKey) {
					return
				}
			}
			jsonError(w, http.StatusConflict, errors.ErrDuplicateRequest.Error())
			return
		}
		defer m.cache.Del(r.Context(), lockKey)

		cw := newCaptureWriter(w, maxCapturedBody)
		next.ServeHTTP(cw, r)

		if err := m.cacheResponse(r, dataKey, cw); err != nil {
			m.logger.Warn("Failed to store idempotent response", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	})
}

type capturedResponse struct {
	Status  int               `json:"status"`
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

func (m *IdempotencyMiddleware) replayCached(w http.ResponseWriter, r *http.Request, dataKey string) bool {
	payload, err := m.cache.Get(r.Context(), dataKey).Bytes()
	if err != nil {
		return false
	}

	var cr capturedResponse
	if err := json.Unmarshal(payload, &cr); err != nil {
		return false
	}

	for k, v := range cr.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cr.Status)
	_, _ = w.Write(cr.Body)
	return true
}

// cacheResponse stores successful responses only, so a failed attempt can be retried.
func (m *IdempotencyMiddleware) cacheResponse(r *http.Request, dataKey string, cw *captureWriter) error {
	if cw.status < 200 || cw.status >= 300 || len(cw.buf) == 0 || cw.truncated {
		return nil
	}

	payload, err := json.Marshal(capturedResponse{
		Status:  cw.status,
		Body:    cw.buf,
		Headers: cw.headers,
	})
	if err != nil {
		return err
	}
	return m.cache.Set(r.Context(), dataKey, payload, m.ttl).Err()
}

type captureWriter struct {
	http.ResponseWriter
	buf       []byte
	limit     int
	status    int
	truncated bool
	headers   map[string]string
}

func newCaptureWriter(w http.ResponseWriter, limit int) *captureWriter {
	return &captureWriter{
		ResponseWriter: w,
		buf:            make([]byte, 0, 1024),
		limit:          limit,
		headers:        make(map[string]string),
	}
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	for k, v := range w.ResponseWriter.Header() {
		if len(v) > 0 {
			w.headers[k] = v[0]
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	space := w.limit - len(w.buf)
	if len(p) > space {
		w.truncated = true
		if space > 0 {
			w.buf = append(w.buf, p[:space]...)
		}
	} else {
		w.buf = append(w.buf, p...)
	}
	return w.ResponseWriter.Write(p)
}
