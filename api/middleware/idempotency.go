package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/firmasegura/certifications-backend/api/responses"
	pkgerrors "github.com/firmasegura/certifications-backend/pkg/errors"
	"github.com/firmasegura/certifications-backend/pkg/logger"
	pkgredis "github.com/firmasegura/certifications-backend/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	replayedHeader         = "Idempotent-Replayed"
	defaultIdempotencyTTL  = 24 * time.Hour
	reviewIdempotencyTTL   = 7 * 24 * time.Hour
	inFlightTTL            = 2 * time.Minute
	inFlightMarker         = "in_flight"
	maxIdempotentBodyBytes = 1 << 20
)

// guardedRoutes maps "METHOD /path" patterns to the TTL of their stored response.
// A "*" segment matches any single path segment.
var guardedRoutes = map[string]time.Duration{
	"POST /api/v1/certifications":                  defaultIdempotencyTTL,
	"POST /api/v1/certifications/*/submit":         defaultIdempotencyTTL,
	"POST /api/admin/v1/certifications/*/review":   defaultIdempotencyTTL,
	"POST /api/admin/v1/certifications/*/approve":  reviewIdempotencyTTL,
	"POST /api/admin/v1/certifications/*/reject":   reviewIdempotencyTTL,
	"POST /api/admin/v1/certifications/*/complete": reviewIdempotencyTTL,
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

// Idempotency replays the first response recorded for a key on guarded routes.
// The key is reserved before the handler runs, so a concurrent duplicate gets a conflict.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	g := idempotencyGuard{store: store, logg: logg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, guarded := routeTTL(r.Method, r.URL.Path)
			if !guarded || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			g.serve(w, r, next, ttl)
		})
	}
}

func (g idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if clientKey == "" {
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIdempotentBodyBytes))
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := sha256.Sum256(body)
	requestHash := hex.EncodeToString(fingerprint[:])
	key := g.store.IdempotencyKey(requestScope(r), clientKey)

	reserved, err := g.store.SetNX(ctx, key, inFlightMarker, inFlightTTL)
	if err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
		return
	}
	if !reserved {
		g.replay(ctx, w, key, requestHash)
		return
	}

	var captured bytes.Buffer
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Tee(&captured)
	next.ServeHTTP(ww, r)

	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	if status >= http.StatusInternalServerError {
		g.logFailure(ctx, "release idempotency key", g.store.Del(ctx, key))
		return
	}

	payload, err := json.Marshal(storedResponse{
		Status:      status,
		ContentType: ww.Header().Get("Content-Type"),
		Body:        captured.Bytes(),
		RequestHash: requestHash,
	})
	if err != nil {
		g.logFailure(ctx, "encode idempotency record", err)
		return
	}
	g.logFailure(ctx, "persist idempotency record", g.store.Set(ctx, key, string(payload), ttl))
}

func (g idempotencyGuard) replay(ctx context.Context, w http.ResponseWriter, key, requestHash string) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is being retried, try again"))
		return
	case err != nil:
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	case raw == inFlightMarker:
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		g.fail(ctx, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if stored.RequestHash != requestHash {
		g.fail(ctx, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func (g idempotencyGuard) fail(ctx context.Context, w http.ResponseWriter, err error) {
	responses.WriteError(ctx, g.logg, w, err)
}

func (g idempotencyGuard) logFailure(ctx context.Context, msg string, err error) {
	if g.logg != nil && err != nil {
		g.logg.Error(ctx, msg, err)
	}
}

// requestScope keeps keys from colliding across callers and endpoints.
func requestScope(r *http.Request) string {
	return UserIDFromContext(r.Context()).String() + "|" + r.Method + "|" + strings.TrimSuffix(r.URL.Path, "/")
}

func routeTTL(method, path string) (time.Duration, bool) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for route, ttl := range guardedRoutes {
		routeMethod, pattern, _ := strings.Cut(route, " ")
		if routeMethod == method && segmentsMatch(strings.Split(strings.Trim(pattern, "/"), "/"), segments) {
			return ttl, true
		}
	}
	return 0, false
}

func segmentsMatch(pattern, segments []string) bool {
	if len(pattern) != len(segments) {
		return false
	}
	for i, want := range pattern {
		if want != "*" && want != segments[i] {
			return false
		}
	}
	return true
}
