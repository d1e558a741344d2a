package handler

import (
	"github.com/gin-gonic/gin"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth          *AuthHandler
	Badges        *BadgeHandler
	Issuance      *IssuanceHandler
	Criteria      *CriterionHandler
	Connections   *ConnectionHandler
	FailedRecords *FailedRecordHandler
	Completions   *CompletionHandler
	Preferences   *PreferenceHandler
	Metrics       *MetricsHandler
}

// RegisterRoutes mounts the API surface under the given prefix. The auth
// middleware guards everything except health, metrics and the token
// exchange itself.
func RegisterRoutes(r *gin.Engine, prefix string, auth gin.HandlerFunc, h Handlers) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	r.POST(prefix+"/auth/token", h.Auth.Token)

	api := r.Group(prefix)
	if auth != nil {
		api.Use(auth)
	}

	api.GET("/badges", h.Badges.List)
	api.GET("/badges/categories", h.Badges.Categories)
	api.GET("/badges/:id", h.Badges.Get)
	api.DELETE("/badges/:id", h.Badges.Delete)
	api.POST("/badges/export", h.Badges.Export)

	api.GET("/assertions", h.Badges.Assertions)
	api.GET("/events/:id", h.Badges.Event)
	api.POST("/events/:id/revoke", h.Issuance.Revoke)
	api.POST("/events/completions", h.Completions.Ingest)

	api.POST("/issue", h.Issuance.Issue)

	api.POST("/criteria", h.Criteria.Create)
	api.GET("/criteria", h.Criteria.List)
	api.GET("/criteria/:id", h.Criteria.Get)
	api.DELETE("/criteria/:id", h.Criteria.Delete)

	api.GET("/connections", h.Connections.List)
	api.POST("/connections", h.Connections.Create)
	api.GET("/connections/:id", h.Connections.Get)
	api.DELETE("/connections/:id", h.Connections.Delete)
	api.POST("/connections/:id/test", h.Connections.Test)

	api.GET("/users/:id/preferences", h.Preferences.List)
	api.PUT("/users/:id/preferences", h.Preferences.Set)
	api.GET("/users/:id/badges", h.Preferences.Badges)

	api.GET("/failed-records", h.FailedRecords.List)
	api.GET("/failed-records/:id", h.FailedRecords.Get)
	api.DELETE("/failed-records/:id", h.FailedRecords.Delete)
}
