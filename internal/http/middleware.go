package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	visitorIDKey
)

const visitorCookieMaxAge = 365 * 24 * 60 * 60

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// RequestLogger logs one line per request through zap, replacing chi's
// stdlib-backed middleware.Logger.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", RequestID(r.Context())),
				}
				if status >= http.StatusInternalServerError {
					logger.Warn("request served", fields...)
					return
				}
				logger.Info("request served", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// VisitorMiddleware identifies the browser by a long-lived cookie, issuing a
// fresh id when the cookie is absent or malformed.
func VisitorMiddleware(cookieName string, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var visitorID string
			if c, err := r.Cookie(cookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					visitorID = c.Value
				}
			}
			if visitorID == "" {
				visitorID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    visitorID,
					Path:     "/",
					MaxAge:   visitorCookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := context.WithValue(r.Context(), visitorIDKey, visitorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func VisitorID(ctx context.Context) string {
	if id, ok := ctx.Value(visitorIDKey).(string); ok {
		return id
	}
	return ""
}

type visitorLimiter struct {
	limiter *rate.Limiter
	last    atomic.Int64
}

// VisitorLimiter throttles each visitor separately. It must run after
// VisitorMiddleware.
type VisitorLimiter struct {
	limit    rate.Limit
	burst    int
	limiters sync.Map // visitor id -> *visitorLimiter
	now      func() time.Time
}

// NewVisitorLimiter returns nil when perSecond is not positive; a nil
// limiter lets every request through.
func NewVisitorLimiter(perSecond float64, burst int) *VisitorLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &VisitorLimiter{limit: rate.Limit(perSecond), burst: burst, now: time.Now}
}

func (l *VisitorLimiter) get(visitorID string) *visitorLimiter {
	if v, ok := l.limiters.Load(visitorID); ok {
		return v.(*visitorLimiter)
	}
	v, _ := l.limiters.LoadOrStore(visitorID, &visitorLimiter{limiter: rate.NewLimiter(l.limit, l.burst)})
	return v.(*visitorLimiter)
}

func (l *VisitorLimiter) Middleware(next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vl := l.get(VisitorID(r.Context()))
		vl.last.Store(l.now().UnixNano())
		if !vl.limiter.Allow() {
			respondError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup forgets visitors not seen for idle and returns how many it dropped.
func (l *VisitorLimiter) Cleanup(idle time.Duration) int {
	if l == nil {
		return 0
	}
	cutoff := l.now().Add(-idle).UnixNano()
	n := 0
	l.limiters.Range(func(key, val any) bool {
		if val.(*visitorLimiter).last.Load() < cutoff {
			l.limiters.Delete(key)
			n++
		}
		return true
	})
	return n
}

// Run calls Cleanup every interval until ctx is done.
func (l *VisitorLimiter) Run(ctx context.Context, every, idle time.Duration) {
	if l == nil {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Cleanup(idle)
		}
	}
}
