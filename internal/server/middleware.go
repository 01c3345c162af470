package server

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/kano/pkg/constants"
	"github.com/inferloop/kano/pkg/errors"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Client-supplied request IDs longer than this are replaced.
const maxRequestIDLength = 128

// observeMiddleware logs each request and records it in the HTTP metrics.
// Both use the route template rather than the raw path.
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		route := routeTemplate(r)
		s.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(rw.statusCode), duration)

		fields := logrus.Fields{
			"method":      r.Method,
			"route":       route,
			"status":      rw.statusCode,
			"duration_ms": duration.Milliseconds(),
			"bytes_in":    r.ContentLength,
			"bytes_out":   rw.bytes,
			"client_ip":   getClientIP(r),
			"request_id":  getRequestID(r),
		}
		query := r.URL.Query()
		for _, param := range []string{"columns", "k", "max_steps", "view"} {
			if v := query.Get(param); v != "" {
				fields[param] = v
			}
		}

		log := s.logger.WithFields(fields)
		if rw.statusCode >= http.StatusBadRequest {
			log.Warn("HTTP request")
			return
		}
		log.Info("HTTP request")
	})
}

// recoveryMiddleware turns a handler panic into a 500 error response.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.WithFields(logrus.Fields{
					"panic":      rec,
					"route":      routeTemplate(r),
					"request_id": getRequestID(r),
					"stack":      string(debug.Stack()),
				}).Error("Panic recovered")

				s.handlers.writeError(w, r, errors.NewInternalError("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware keeps a usable client X-Request-ID or assigns one.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(constants.HeaderRequestID))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
		}
		w.Header().Set(constants.HeaderRequestID, requestID)

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", strings.Join([]string{
			constants.HeaderAccept, constants.HeaderContentType, constants.HeaderRequestID,
		}, ", "))
		h.Set("Access-Control-Expose-Headers", constants.HeaderRequestID+", "+constants.HeaderContentDisposition)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bodyLimitMiddleware rejects uploads whose declared length exceeds
// MaxRequestSize and caps the rest while the CSV is read.
func (s *Server) bodyLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.config.MaxRequestSize
		if r.ContentLength > limit {
			s.handlers.writeError(w, r, errors.WrapError(&http.MaxBytesError{Limit: limit},
				errors.ErrorTypeValidation, errors.CodeRequestTooLarge, "request body too large").
				WithContext("max_size", limit))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, limit)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// responseWriter records the status code and the number of body bytes.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(data)
	rw.bytes += n
	return n, err
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get(constants.HeaderForwardedFor); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if realIP := r.Header.Get(constants.HeaderRealIP); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func getRequestID(r *http.Request) string {
	if requestID, ok := r.Context().Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}
