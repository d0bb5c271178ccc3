package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type requestInfoKey struct{}

type requestInfo struct {
	id  uuid.UUID
	seq int64
	log *logrus.Entry
}

func infoFrom(r *http.Request) requestInfo {
	if info, ok := r.Context().Value(requestInfoKey{}).(requestInfo); ok {
		return info
	}
	return requestInfo{log: logrus.NewEntry(log)}
}

// requestLogger returns the logger carrying the request's correlation fields.
func requestLogger(r *http.Request) *logrus.Entry {
	return infoFrom(r).log
}

// attachRequestID tags each request with a UUID and the process-wide request number.
func (h *HTTPHandler) attachRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := requestInfo{
			id:  uuid.New(),
			seq: h.tracker.NextRequest(),
		}
		info.log = log.WithFields(logrus.Fields{
			"request_id": info.id.String(),
			"seq":        info.seq,
		})

		w.Header().Set("X-Request-Id", info.id.String())
		ctx := context.WithValue(r.Context(), requestInfoKey{}, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logRequest writes one access log line per request and feeds the request metrics.
func (h *HTTPHandler) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		h.tracker.ObserveRequest(route, r.Method, status)

		entry := requestLogger(r).WithFields(logrus.Fields{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"took":        time.Since(start).String(),
			"bytes_in":    r.ContentLength,
			"bytes_out":   ww.BytesWritten(),
			"origin":      r.Header.Get("Origin"),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Warn("request failed")
		case r.URL.Path == "/api/health" && status == http.StatusOK:
			entry.Debug("request served")
		default:
			entry.Info("request served")
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		log.Errorf("failed to write response: %v", err)
	}
}

// logAndReturnError logs err server side and writes it as an ErrorResponse. The
// stack is only sent outside production.
func (h *HTTPHandler) logAndReturnError(w http.ResponseWriter, r *http.Request, e *apiError) {
	info := infoFrom(r)
	entry := info.log.WithFields(logrus.Fields{
		"status": e.status,
		"kind":   e.kind,
	})
	if e.cause != nil {
		entry = entry.WithError(e.cause)
	}
	if e.stack != "" {
		entry = entry.WithField("stack", e.stack)
	}
	if e.status >= http.StatusInternalServerError {
		entry.Error(e.message)
	} else {
		entry.Info(e.message)
	}

	resp := ErrorResponse{
		Error:   e.kind,
		Message: e.message,
	}
	if info.id != uuid.Nil {
		resp.RequestID = info.id.String()
	}
	if !h.production {
		switch {
		case e.stack != "":
			resp.Stack = e.stack
		case e.cause != nil:
			resp.Stack = fmt.Sprintf("%+v", e.cause)
		}
	}
	writeJSON(w, e.status, resp)
}
