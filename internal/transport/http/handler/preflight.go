package handler

import "net/http"

// CORS headers sent on every OPTIONS answer.
const (
	AllowHeaders = "authorization, x-client-info, apikey, content-type"
	AllowMethods = "POST, OPTIONS"
)

// PreflightHandler answers OPTIONS with 200 "ok" before any business logic runs.
type PreflightHandler struct {
	anyOrigin bool
	origins   map[string]bool
}

// NewPreflightHandler builds a handler for the allowed origins. "*" allows all.
func NewPreflightHandler(allowedOrigins []string) *PreflightHandler {
	p := &PreflightHandler{origins: make(map[string]bool, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		if o == "*" {
			p.anyOrigin = true
		}
		p.origins[o] = true
	}
	return p
}

func (p *PreflightHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	switch origin := r.Header.Get("Origin"); {
	case p.anyOrigin:
		h.Set("Access-Control-Allow-Origin", "*")
	case p.origins[origin]:
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Allow-Headers", AllowHeaders)
	h.Set("Access-Control-Allow-Methods", AllowMethods)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// MethodNotAllowed answers any method other than POST and OPTIONS.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}
