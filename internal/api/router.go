package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/pantrylog/pantrylog/internal/lifecycle"
	"github.com/pantrylog/pantrylog/internal/ws"
)

// NewRouter creates the API router with all endpoints registered. The hub
// may be nil when realtime updates are not wanted (tests).
func NewRouter(db *sql.DB, jwtSecret string, svc *lifecycle.Service, hub *ws.Hub, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, Log: log}
	itemsHandler := &ItemsHandler{DB: db, Svc: svc, Log: log}
	quantityHandler := &QuantityHandler{DB: db, Svc: svc}
	statsHandler := &StatsHandler{DB: db}
	devicesHandler := &DevicesHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Items.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("POST /api/items/analyze", authMW(http.HandlerFunc(itemsHandler.CreateFromPhoto)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("PUT /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Update)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("PUT /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.UploadImage)))
	mux.Handle("GET /api/items/{id}/image", authMW(http.HandlerFunc(itemsHandler.GetImage)))
	mux.Handle("POST /api/items/{id}/analyze", authMW(http.HandlerFunc(itemsHandler.Analyze)))

	// Quantity.
	mux.Handle("PUT /api/items/{id}/quantity", authMW(http.HandlerFunc(quantityHandler.Set)))
	mux.Handle("POST /api/items/{id}/quantity/adjust", authMW(http.HandlerFunc(quantityHandler.Adjust)))
	mux.Handle("GET /api/quick-steps", authMW(http.HandlerFunc(quantityHandler.QuickSteps)))

	// Dashboard counters.
	mux.Handle("GET /api/stats", authMW(http.HandlerFunc(statsHandler.Counters)))

	// Push-notification devices.
	mux.Handle("POST /api/devices", authMW(http.HandlerFunc(devicesHandler.Register)))
	mux.Handle("DELETE /api/devices", authMW(http.HandlerFunc(devicesHandler.Unregister)))
	mux.Handle("GET /api/devices", authMW(http.HandlerFunc(devicesHandler.List)))

	// Realtime item feed.
	if hub != nil {
		mux.Handle("GET /api/ws", authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			hub.Serve(w, r, claims.UserID)
		})))
	}

	return LoggingMiddleware(log)(mux)
}
