package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/embed"
	"github.com/JakeFAU/embedctl/internal/metrics"
	"github.com/JakeFAU/embedctl/internal/oembed"
	"github.com/JakeFAU/embedctl/internal/rawcodec"
	"github.com/JakeFAU/embedctl/internal/telemetry"
)

// ProxyPath is the oEmbed proxy route.
const ProxyPath = "/oembed/1.0/proxy"

// Proxier resolves proxy lookups.
type Proxier interface {
	Proxy(ctx context.Context, req embed.ProxyRequest) (oembed.Data, error)
}

// IDGenerator produces request identifiers.
type IDGenerator interface {
	MustID() string
}

// ReadyFunc reports whether downstream dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// Server wires HTTP handlers to the resolver.
type Server struct {
	router  chi.Router
	proxy   Proxier
	codec   *rawcodec.Codec
	ready   ReadyFunc
	ids     IDGenerator
	timeout time.Duration
	logger  *zap.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithReadyCheck sets the readiness probe.
func WithReadyCheck(fn ReadyFunc) Option {
	return func(s *Server) {
		s.ready = fn
	}
}

// WithRequestTimeout bounds each request. The default is 60 seconds.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// NewServer constructs a Server with middleware and routes.
func NewServer(proxy Proxier, ids IDGenerator, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		proxy:   proxy,
		codec:   rawcodec.New(),
		ids:     ids,
		timeout: 60 * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(s.timeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get(ProxyPath, s.getProxy)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.logger.Warn("Readiness check failed", zap.Error(err))
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getProxy(w http.ResponseWriter, r *http.Request) {
	req, err := parseProxyRequest(r)
	if err != nil {
		var perr *paramError
		if errors.As(err, &perr) {
			s.writeError(w, http.StatusBadRequest, perr.code, perr.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, "rest_invalid_param", err.Error())
		return
	}

	data, err := s.proxy.Proxy(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, embed.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "oembed_invalid_url", embed.ErrNotFound.Error())
		case errors.Is(err, embed.ErrInvalidOptionCombination):
			s.writeError(w, http.StatusBadRequest, "rest_invalid_param", err.Error())
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			s.writeError(w, http.StatusRequestTimeout, "oembed_timeout", "request timed out")
		default:
			s.logger.Error("Proxy lookup failed", zap.String("url", req.URL), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "oembed_error", "internal server error")
		}
		return
	}

	if req.Format == "xml" {
		out, err := s.codec.Encode(data, rawcodec.FormatXML)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "oembed_error", err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(out)); err != nil {
			s.logger.Warn("Write XML failed", zap.Error(err))
		}
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

type paramError struct {
	code string
	msg  string
}

func (e *paramError) Error() string {
	return e.msg
}

func parseProxyRequest(r *http.Request) (embed.ProxyRequest, error) {
	q := r.URL.Query()
	req := embed.ProxyRequest{
		URL:      strings.TrimSpace(q.Get("url")),
		Format:   q.Get("format"),
		Discover: true,
	}
	if req.URL == "" {
		return embed.ProxyRequest{}, &paramError{code: "rest_missing_callback_param", msg: "Missing parameter(s): url"}
	}
	switch req.Format {
	case "":
		req.Format = "json"
	case "json", "xml":
	default:
		return embed.ProxyRequest{}, &paramError{code: "rest_invalid_param", msg: "Invalid parameter(s): format"}
	}
	if raw := q.Get("maxwidth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return embed.ProxyRequest{}, &paramError{code: "rest_invalid_param", msg: "Invalid parameter(s): maxwidth"}
		}
		req.MaxWidth = n
	}
	if raw := q.Get("maxheight"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return embed.ProxyRequest{}, &paramError{code: "rest_invalid_param", msg: "Invalid parameter(s): maxheight"}
		}
		req.MaxHeight = &n
	}
	if raw := q.Get("discover"); raw != "" {
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return embed.ProxyRequest{}, &paramError{code: "rest_invalid_param", msg: "Invalid parameter(s): discover"}
		}
		req.Discover = on
	}
	return req, nil
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" && s.ids != nil {
			reqID = s.ids.MustID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type errorBody struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Data    errorData `json:"data"`
}

type errorData struct {
	Status int `json:"status"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, errorBody{Code: code, Message: msg, Data: errorData{Status: status}})
}
