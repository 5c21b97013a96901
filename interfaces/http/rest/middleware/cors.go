package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods = "GET,POST,PUT,DELETE,OPTIONS,PATCH"
	corsAllowHeaders = "Content-Type,Authorization,X-Requested-With"
)

// CORSPolicy decides which origins are echoed back to browsers.
type CORSPolicy struct {
	origins map[string]struct{}
}

// NewCORSPolicy creates a policy allowing exactly origins.
func NewCORSPolicy(origins []string) *CORSPolicy {
	p := &CORSPolicy{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			p.origins[o] = struct{}{}
		}
	}
	return p
}

// Allowed reports whether origin may read responses.
func (p *CORSPolicy) Allowed(origin string) bool {
	_, ok := p.origins[origin]
	return ok
}

// Apply sets the CORS headers for r. An allowed origin is echoed, a
// request without Origin gets "*", and a disallowed origin gets no
// Allow-Origin header so the browser blocks the response.
func (p *CORSPolicy) Apply(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	switch {
	case origin == "":
		setCORSHeaders(w.Header(), "*")
	case p.Allowed(origin):
		setCORSHeaders(w.Header(), origin)
	default:
		setCORSHeaders(w.Header(), "")
	}
}

// ApplyPermissive echoes any origin. It is used for preflight and error
// responses, and on the initialization fallback path where the configured
// policy may not have loaded.
func ApplyPermissive(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	setCORSHeaders(w.Header(), origin)
}

func setCORSHeaders(h http.Header, origin string) {
	if origin != "" {
		h.Set("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			h.Add("Vary", "Origin")
		}
	}
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Allow-Credentials", "true")
}

// CORS applies the policy to every response and answers OPTIONS on any
// path with 200, no body and the headers echoed for any origin. Error
// responses (status >= 400) echo the request origin too, so browsers can
// read why a call failed.
func CORS(policy *CORSPolicy) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				ApplyPermissive(w, r)
				w.WriteHeader(http.StatusOK)
				return
			}
			policy.Apply(w, r)
			next.ServeHTTP(&errorOriginWriter{ResponseWriter: w, r: r}, r)
		})
	}
}

// errorOriginWriter adds the permissive Allow-Origin header when an error
// status is written for an origin outside the allow-list.
type errorOriginWriter struct {
	http.ResponseWriter
	r           *http.Request
	wroteHeader bool
}

func (w *errorOriginWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		if code >= http.StatusBadRequest && w.Header().Get("Access-Control-Allow-Origin") == "" {
			ApplyPermissive(w.ResponseWriter, w.r)
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *errorOriginWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *errorOriginWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *errorOriginWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
