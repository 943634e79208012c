package handlers

import (
	"chat-bot/internal/auth"
	"net/http"
)

// NewRouter registers the operator routes. Health is public; everything else
// requires a bearer token.
func NewRouter(h *OperatorHandlers, a *auth.Authenticator, origin string) *http.ServeMux {
	mux := http.NewServeMux()

	cors := func(next http.HandlerFunc) http.HandlerFunc { return auth.EnableCORS(origin, next) }
	preflight := cors(func(w http.ResponseWriter, r *http.Request) {})

	mux.HandleFunc("GET /api/health", cors(h.HealthHandler))
	mux.HandleFunc("OPTIONS /api/health", preflight)

	mux.HandleFunc("GET /api/users/{id}/searches", cors(a.Middleware(h.SearchesHandler)))
	mux.HandleFunc("OPTIONS /api/users/{id}/searches", preflight)
	mux.HandleFunc("GET /api/rooms", cors(a.Middleware(h.RoomsHandler)))
	mux.HandleFunc("OPTIONS /api/rooms", preflight)
	mux.HandleFunc("GET /api/casual/{chat}", cors(a.Middleware(h.CasualHandler)))
	mux.HandleFunc("OPTIONS /api/casual/{chat}", preflight)

	return mux
}
