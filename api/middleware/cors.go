package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/angelmondragon/visitrewards-backend/api/responses"
)

var localDevOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// CORS admits the staff dashboard and scanner apps. An empty list falls back
// to local development origins. Clients read the request id and the replay
// marker, so both are exposed.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = localDevOrigins
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "X-Requested-With",
			IdempotencyKeyHeader, responses.RequestIDHeader, "X-Request-Token",
		},
		ExposedHeaders:   []string{responses.RequestIDHeader, ReplayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
