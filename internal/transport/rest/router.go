package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/star4ce/star4ce-backend/internal/analytics"
	"github.com/star4ce/star4ce-backend/internal/auth"
	"github.com/star4ce/star4ce-backend/internal/employee"
	"github.com/star4ce/star4ce-backend/internal/governance"
	"github.com/star4ce/star4ce-backend/internal/permission"
	"github.com/star4ce/star4ce-backend/internal/subscription"
	"github.com/star4ce/star4ce-backend/internal/survey"
	"github.com/star4ce/star4ce-backend/internal/transport/middleware"
	"github.com/star4ce/star4ce-backend/internal/transport/swagger"
)

// Handlers bundles every domain handler the router mounts.
type Handlers struct {
	Auth         *auth.Handler
	Permission   *permission.Handler
	Subscription *subscription.Handler
	Survey       *survey.Handler
	Employee     *employee.Handler
	Analytics    *analytics.Handler
	Governance   *governance.Handler
}

// RegisterAllRoutes wires middleware and every route onto the router.
// The billing webhook and the survey respondent endpoints stay outside the
// auth group: respondents only hold an access code, never an account.
func RegisterAllRoutes(router *chi.Mux, db *sql.DB, h Handlers, rateLimiter *middleware.RateLimiter, corsOrigin string, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	router.Use(middleware.CORS(corsOrigin))
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Provider callbacks authenticate via signature, not bearer token.
		r.Post("/subscription/webhook", h.Subscription.Webhook)

		r.Route("/auth", func(sr chi.Router) {
			if rateLimiter != nil {
				sr.Use(rateLimiter.Limit)
			}
			sr.Post("/register", h.Auth.Register)
			sr.Post("/login", h.Auth.Login)
			sr.Post("/verify", h.Auth.Verify)
			sr.Post("/resend-verification", h.Auth.ResendVerification)
			sr.Post("/request-reset", h.Auth.RequestReset)
			sr.Post("/reset-password", h.Auth.ResetPassword)
		})

		// Survey respondents are anonymous.
		r.Route("/survey", func(sr chi.Router) {
			if rateLimiter != nil {
				sr.Use(rateLimiter.Limit)
			}
			sr.Post("/validate-code", h.Survey.ValidateCode)
			sr.Post("/submit", h.Survey.SubmitResponse)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/auth/me", h.Auth.Me)

			pr.Route("/permissions", func(sr chi.Router) {
				sr.Get("/me", h.Permission.GetMyPermissions)
				sr.Get("/roles", h.Permission.ListRoleOverrides)
				sr.Put("/roles", h.Permission.SetRolePermission)
				sr.Put("/users", h.Permission.SetUserPermission)
			})

			pr.Route("/subscription", func(sr chi.Router) {
				sr.Post("/checkout", h.Subscription.CreateCheckout)
				sr.Get("/status", h.Subscription.Status)
				sr.Post("/cancel", h.Subscription.Cancel)
				sr.Post("/resume", h.Subscription.Resume)
			})

			pr.Route("/survey-codes", func(sr chi.Router) {
				sr.Post("/", h.Survey.CreateAccessCode)
				sr.Get("/", h.Survey.ListAccessCodes)
				sr.Post("/invite", h.Survey.SendInvite)
			})

			pr.Route("/employees", func(sr chi.Router) {
				sr.Post("/", h.Employee.Create)
				sr.Get("/", h.Employee.List)
				sr.Get("/export", h.Employee.ExportCSV)
				sr.Get("/{id}", h.Employee.Get)
				sr.Put("/{id}", h.Employee.Update)
				sr.Delete("/{id}", h.Employee.Delete)
			})

			pr.Route("/analytics", func(sr chi.Router) {
				sr.Use(h.Permission.Require(permission.KeyViewAnalytics))
				sr.Get("/summary", h.Analytics.Summary)
				sr.Get("/time-series", h.Analytics.TimeSeries)
				sr.Get("/averages", h.Analytics.Averages)
				sr.Get("/role-breakdown", h.Analytics.RoleBreakdown)
			})

			pr.Route("/governance", func(sr chi.Router) {
				sr.Get("/managers/pending", h.Governance.ListPendingManagers)
				sr.Post("/managers/{id}/approve", h.Governance.ApproveManager)
				sr.Post("/managers/{id}/reject", h.Governance.RejectManager)

				sr.Post("/manager-dealership-requests", h.Governance.RequestManagerDealership)
				sr.Post("/manager-dealership-requests/{id}/resolve", h.Governance.ResolveManagerDealershipRequest)

				sr.Post("/dealership-access-requests", h.Governance.RequestDealershipAccess)
				sr.Post("/dealership-access-requests/{id}/resolve", h.Governance.ResolveDealershipAccessRequest)

				sr.Post("/admin-requests", h.Governance.RequestAdmin)
				sr.Post("/admin-requests/{id}/resolve", h.Governance.ResolveAdminRequest)

				sr.Post("/corporate-dealerships", h.Governance.AssignDealership)
				sr.Get("/corporate-dealerships/me", h.Governance.MyAccessibleDealerships)
			})
		})
	})
}
