package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/shestoi/warehouse/internal/api/http/middleware"
	platformhealth "github.com/shestoi/warehouse/platform/health/http"
	platformobservability "github.com/shestoi/warehouse/platform/observability"
)

// RouterConfig зависимости роутера помимо Handler
type RouterConfig struct {
	Sessions       middleware.SessionResolver
	HealthChecks   []platformhealth.Check
	HealthTimeout  time.Duration
	AllowedOrigins []string
	ServiceName    string
}

// NewRouter создаёт и настраивает HTTP роутер склада.
// /health открыт, всё под /api требует x-session-id.
func NewRouter(handler *Handler, cfg RouterConfig, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	if logger != nil {
		router.Use(platformobservability.HTTPMiddleware(cfg.ServiceName, logger))
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", middleware.SessionHeader, platformobservability.RequestIDHeader},
		ExposedHeaders:   []string{platformobservability.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", platformhealth.Handler(cfg.HealthTimeout, cfg.HealthChecks...))

	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.WithActor(cfg.Sessions, logger))

		r.Route("/item", func(r chi.Router) {
			r.Post("/listItem", handler.ListItem)
			r.Post("/listAllItem", handler.ListAllItem)
			r.Post("/addItem", handler.AddItem)
			r.Post("/updateItem", handler.UpdateItem)
			r.Get("/getItem", handler.GetItem)
			r.Post("/deleteItem", handler.DeleteItem)
		})

		r.Route("/transaction", func(r chi.Router) {
			r.Post("/listTransaction", handler.ListTransaction)
			r.Get("/listItemTransaction", handler.ListItemTransaction)
			r.Post("/checkIn", handler.CheckIn)
			r.Post("/checkOut", handler.CheckOut)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/summary", handler.DashboardSummary)
			r.Get("/aiReport", handler.DailyReport)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Post("/parseAndAddItems", handler.ParseAndAddItems)
			r.Get("/dailyReport", handler.DailyReport)
		})
	})

	return router
}
