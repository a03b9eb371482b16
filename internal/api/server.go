// Package api exposes the console's HTTP interface.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/config"
	"github.com/strataisp/console/internal/metrics"
	"github.com/strataisp/console/internal/store"
)

// Services groups the domain services the server routes to. Each field
// is an interface declared next to its handlers, so tests can swap in
// small fakes per domain.
type Services struct {
	Diag      DiagService
	Dashboard DashboardService
	Billing   BillingService
	Cards     CardService
	Campaigns CampaignService
	Imports   ImportService
	Notify    NotifyService
	Schedule  ScheduleService
	FUP       FUPService
	Branding  BrandingService
	Progress  store.ProgressRepository
}

// Config carries the server's own settings, as opposed to the domain
// services it fronts.
type Config struct {
	Auth config.AuthConfig
	// RequestTimeout bounds buffered routes. The probe stream route is
	// exempt: it stays open for the life of the probe.
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Server wires HTTP handlers to the domain services.
type Server struct {
	router chi.Router
	svc    Services
	logger *zap.Logger
}

const defaultRequestTimeout = 60 * time.Second

// NewServer constructs a Server with middleware and routes.
func NewServer(svc Services, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	s := &Server{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// http.TimeoutHandler buffers the body, so the stream route
		// mounts outside the timeout group.
		r.Post("/diag/ping/stream", s.streamProbe)

		r.Group(func(r chi.Router) {
			r.Use(timeoutMiddleware(timeout))

			r.Route("/diag", func(r chi.Router) {
				r.Get("/routers", s.listRouters)
				r.Post("/traceroute", s.runTraceroute)
				r.Post("/dns", s.runDNSCheck)
			})

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/summary", s.dashboardSummary)
				r.Post("/refresh", s.dashboardRefresh)
			})

			r.Route("/billing", func(r chi.Router) {
				r.Post("/sync", s.syncInvoices)
				r.Route("/invoices", func(r chi.Router) {
					r.Get("/", s.listInvoices)
					r.Get("/{invoice_id}", s.getInvoice)
					r.Get("/{invoice_id}/pdf", s.getInvoicePDF)
				})
			})

			r.Route("/cards", func(r chi.Router) {
				r.Post("/redeem", s.redeemCard)
				r.Route("/batches", func(r chi.Router) {
					r.Post("/", s.createCardBatch)
					r.Get("/", s.listCardBatches)
					r.Get("/{batch_id}", s.getCardBatch)
					r.Get("/{batch_id}/cards", s.listBatchCards)
					r.Post("/{batch_id}/void", s.voidCardBatch)
				})
			})

			r.Route("/campaigns", func(r chi.Router) {
				r.Post("/", s.createCampaign)
				r.Get("/", s.listCampaigns)
				r.Route("/{campaign_id}", func(r chi.Router) {
					r.Get("/", s.getCampaign)
					r.Get("/recipients", s.listCampaignRecipients)
					r.Post("/start", s.startCampaign)
					r.Post("/cancel", s.cancelCampaign)
				})
			})

			r.Route("/imports", func(r chi.Router) {
				r.Post("/", s.submitImport)
				r.Get("/", s.listImportJobs)
				r.Get("/{job_id}", s.getImportJob)
				r.Get("/{job_id}/errors", s.listImportRowErrors)
			})

			r.Route("/notify", func(r chi.Router) {
				r.Route("/templates", func(r chi.Router) {
					r.Post("/", s.createTemplate)
					r.Get("/", s.listTemplates)
					r.Get("/{template_id}", s.getTemplate)
					r.Put("/{template_id}", s.updateTemplate)
					r.Delete("/{template_id}", s.deleteTemplate)
				})
				r.Route("/rules", func(r chi.Router) {
					r.Post("/", s.createNotifyRule)
					r.Get("/", s.listNotifyRules)
					r.Get("/{rule_id}", s.getNotifyRule)
					r.Put("/{rule_id}", s.updateNotifyRule)
					r.Delete("/{rule_id}", s.deleteNotifyRule)
					r.Post("/{rule_id}/test", s.testNotifyRule)
				})
			})

			r.Route("/schedule/rules", func(r chi.Router) {
				r.Post("/", s.createScheduleRule)
				r.Get("/", s.listScheduleRules)
				r.Get("/{rule_id}", s.getScheduleRule)
				r.Put("/{rule_id}", s.updateScheduleRule)
				r.Delete("/{rule_id}", s.deleteScheduleRule)
				r.Post("/{rule_id}/toggle", s.toggleScheduleRule)
			})

			r.Route("/fup/profiles", func(r chi.Router) {
				r.Post("/", s.createFUPProfile)
				r.Get("/", s.listFUPProfiles)
				r.Get("/{profile_id}", s.getFUPProfile)
				r.Put("/{profile_id}", s.updateFUPProfile)
				r.Delete("/{profile_id}", s.deleteFUPProfile)
			})

			r.Route("/branding/{reseller_id}", func(r chi.Router) {
				r.Get("/", s.getBranding)
				r.Put("/", s.upsertBranding)
				r.Post("/logo", s.uploadBrandingLogo)
				r.Post("/domain/verify", s.verifyBrandingDomain)
				r.Get("/ssl", s.brandingSSLStatus)
			})

			r.Route("/progress/jobs", func(r chi.Router) {
				r.Get("/", s.listJobProgress)
				r.Get("/{job_id}", s.getJobProgress)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
