package requestlog

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"proxygate/internal/models"
	"proxygate/internal/ratelimit"
)

// Recorder accepts finished request logs.
type Recorder interface {
	Record(l models.RequestLog) bool
}

// MiddlewareOptions configures Middleware.
type MiddlewareOptions struct {
	// PathPrefix limits logging to matching paths. Defaults to "/api/".
	PathPrefix  string
	MaxBodySize int
}

// Middleware records every matching request with its status, latency and
// both bodies, truncated to MaxBodySize.
func Middleware(rec Recorder, opts MiddlewareOptions) func(http.Handler) http.Handler {
	if opts.PathPrefix == "" {
		opts.PathPrefix = "/api/"
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = models.DefaultMaxBodySize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, opts.PathPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqBody := captureRequestBody(r, opts.MaxBodySize)
			cw := &capturingWriter{ResponseWriter: w, status: http.StatusOK, limit: opts.MaxBodySize + 1}

			defer func() {
				// A panicking handler is logged as a 500 before the panic
				// continues to the recovery middleware.
				p := recover()
				status := cw.status
				if p != nil && !cw.wroteHeader {
					status = http.StatusInternalServerError
				}
				rec.Record(models.RequestLog{
					ClientIP:     ratelimit.ClientIP(r),
					Method:       r.Method,
					Path:         r.URL.Path,
					APIKey:       keyPrefix(r),
					RequestBody:  reqBody,
					ResponseBody: cw.body.String(),
					IsSuccess:    status < 400,
					StatusCode:   status,
					LatencyMs:    time.Since(start).Milliseconds(),
					CreatedAt:    start.UTC(),
				})
				if p != nil {
					panic(p)
				}
			}()

			next.ServeHTTP(cw, r)
		})
	}
}

// captureRequestBody reads up to limit+1 bytes and restores the body so the
// handler still sees all of it.
func captureRequestBody(r *http.Request, limit int) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, int64(limit)+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(buf), r.Body), r.Body}
	if err != nil {
		return ""
	}
	return string(buf)
}

// keyPrefix returns the first characters of the presented credential.
func keyPrefix(r *http.Request) string {
	const bearer = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearer) {
		return models.KeyPrefix(strings.TrimSpace(auth[len(bearer):]))
	}
	if c, err := r.Cookie("auth_token"); err == nil && c.Value != "" {
		return models.KeyPrefix(c.Value)
	}
	if key := r.URL.Query().Get("key"); key != "" {
		return models.KeyPrefix(key)
	}
	return ""
}

type capturingWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
	limit       int
}

func (cw *capturingWriter) WriteHeader(code int) {
	if !cw.wroteHeader {
		cw.status = code
		cw.wroteHeader = true
	}
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *capturingWriter) Write(b []byte) (int, error) {
	cw.wroteHeader = true
	if room := cw.limit - cw.body.Len(); room > 0 {
		cw.body.Write(b[:min(room, len(b))])
	}
	return cw.ResponseWriter.Write(b)
}

func (cw *capturingWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
