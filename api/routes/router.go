package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/firmasegura/certifications-backend/api/controllers"
	"github.com/firmasegura/certifications-backend/api/middleware"
	"github.com/firmasegura/certifications-backend/internal/certifications"
	"github.com/firmasegura/certifications-backend/pkg/catalog"
	"github.com/firmasegura/certifications-backend/pkg/config"
	"github.com/firmasegura/certifications-backend/pkg/enums"
	"github.com/firmasegura/certifications-backend/pkg/logger"
	"github.com/firmasegura/certifications-backend/pkg/redis"
)

// Dependencies are the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config         *config.Config
	Logger         *logger.Logger
	Certifications certifications.Service
	Catalog        *catalog.Catalog
	Idempotency    redis.IdempotencyStore
	RateLimiter    redis.RateLimiter
	Readiness      map[string]controllers.Pinger
	Gatherer       prometheus.Gatherer
}

func NewRouter(deps Dependencies) http.Handler {
	cfg, logg, svc := deps.Config, deps.Logger, deps.Certifications

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	uploadPolicy := middleware.RateLimitPolicy{
		Name:   "uploads",
		Limit:  int64(cfg.Uploads.RateLimitPerMinute),
		Window: time.Minute,
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/catalog", controllers.Catalog(deps.Catalog))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.RoleUser, enums.RoleAdmin))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))

			r.Route("/certifications", func(r chi.Router) {
				r.Get("/", controllers.ListCertifications(svc, logg))
				r.Post("/", controllers.CreateCertification(svc, logg))
				r.Get("/stats", controllers.CertificationStats(svc, logg))
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", controllers.GetCertification(svc, logg))
					r.Put("/", controllers.UpdateCertification(svc, logg))
					r.Delete("/", controllers.DeleteCertification(svc, logg))
					r.Post("/submit", controllers.SubmitCertification(svc, logg))
					r.Get("/history", controllers.CertificationHistory(svc, logg))
					r.Route("/attachments/{slot}", func(r chi.Router) {
						r.With(middleware.RateLimit(uploadPolicy, deps.RateLimiter, logg)).
							Put("/", controllers.UploadAttachment(svc, cfg.Uploads.MaxRequestBytes(), logg))
						r.Get("/", controllers.DownloadAttachment(svc, logg))
						r.Delete("/", controllers.RemoveAttachment(svc, logg))
					})
				})
			})
		})
	})

	r.Route("/api/admin/v1/certifications", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Get("/", controllers.ListCertifications(svc, logg))
		r.Get("/stats", controllers.CertificationStats(svc, logg))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", controllers.GetCertification(svc, logg))
			r.Get("/history", controllers.CertificationHistory(svc, logg))
			r.Get("/attachments/{slot}", controllers.DownloadAttachment(svc, logg))
			r.Post("/review", controllers.AdminStartReview(svc, logg))
			r.Post("/approve", controllers.AdminApprove(svc, logg))
			r.Post("/reject", controllers.AdminReject(svc, logg))
			r.Post("/complete", controllers.AdminComplete(svc, logg))
		})
	})

	return r
}
