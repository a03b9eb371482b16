// Package app assembles the console's services into a running process.
// It is the only package that knows every concrete implementation; the
// services themselves see interfaces.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	pubsubv2 "cloud.google.com/go/pubsub/v2"
	gcsapi "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/api"
	"github.com/strataisp/console/internal/billing"
	"github.com/strataisp/console/internal/billing/pdf"
	"github.com/strataisp/console/internal/branding"
	"github.com/strataisp/console/internal/cache"
	"github.com/strataisp/console/internal/campaign"
	"github.com/strataisp/console/internal/cards"
	"github.com/strataisp/console/internal/clock/system"
	"github.com/strataisp/console/internal/config"
	"github.com/strataisp/console/internal/dashboard"
	"github.com/strataisp/console/internal/diag"
	"github.com/strataisp/console/internal/fup"
	"github.com/strataisp/console/internal/gateway"
	"github.com/strataisp/console/internal/hash/sha256"
	uuidgen "github.com/strataisp/console/internal/id/uuid"
	"github.com/strataisp/console/internal/importer"
	"github.com/strataisp/console/internal/jobs"
	"github.com/strataisp/console/internal/metrics"
	"github.com/strataisp/console/internal/notify"
	"github.com/strataisp/console/internal/notify/email"
	"github.com/strataisp/console/internal/platform"
	"github.com/strataisp/console/internal/progress"
	"github.com/strataisp/console/internal/progress/sinks"
	"github.com/strataisp/console/internal/publisher"
	pubsubpub "github.com/strataisp/console/internal/publisher/pubsub"
	"github.com/strataisp/console/internal/schedule"
	"github.com/strataisp/console/internal/storage"
	"github.com/strataisp/console/internal/storage/gcs"
	"github.com/strataisp/console/internal/storage/local"
	"github.com/strataisp/console/internal/storage/postgres"
)

const shutdownTimeout = 15 * time.Second

// App holds every long-lived component of the console process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	db        *pgxpool.Pool
	redis     *redis.Client
	gcsClient *gcsapi.Client
	pubsubCli *pubsubv2.Client

	hub      *progress.Hub
	queue    *jobs.MemoryQueue
	workers  *jobs.Pool
	renderer *pdf.Renderer
	diag     *diag.Service

	httpServer *http.Server
}

// New wires the whole dependency graph. It fails fast: any component
// that cannot initialize aborts startup.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	db, err := postgres.Connect(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		return nil, err
	}
	a.db = db

	billingStore := postgres.NewBillingStore(db)
	brandingStore := postgres.NewBrandingStore(db)
	campaignStore := postgres.NewCampaignStore(db)
	cardStore := postgres.NewCardStore(db)
	fupStore := postgres.NewFUPStore(db)
	importStore := postgres.NewImportStore(db)
	notifyStore := postgres.NewNotifyStore(db)
	progressStore := postgres.NewProgressStore(db)
	scheduleStore := postgres.NewScheduleStore(db)

	var dashCache dashboard.Store
	if cfg.Redis.Addr != "" {
		client, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.closePartial()
			return nil, err
		}
		a.redis = client
		dashCache = cache.New(client, "dashboard", logger)
	}

	core := platform.New(platform.Config{
		BaseURL:  cfg.Platform.BaseURL,
		APIKey:   cfg.Platform.APIKey,
		Timeout:  cfg.Platform.Timeout(),
		MaxTries: cfg.Platform.MaxRetries,
		Logger:   logger,
	})

	smsGateway := gateway.NewSMSClient(gateway.SMSConfig{
		BaseURL: cfg.Gateways.SMS.BaseURL,
		APIKey:  cfg.Gateways.SMS.APIKey,
		Timeout: cfg.Gateways.SMS.Timeout(),
		Limiter: gateway.NewLimiter(cfg.Gateways.SMS.RatePerSecond, cfg.Gateways.SMS.Burst),
		Logger:  logger,
	})
	whatsappGateway := gateway.NewWhatsAppClient(gateway.WhatsAppConfig{
		BaseURL: cfg.Gateways.WhatsApp.BaseURL,
		APIKey:  cfg.Gateways.WhatsApp.APIKey,
		Timeout: cfg.Gateways.WhatsApp.Timeout(),
		Limiter: gateway.NewLimiter(cfg.Gateways.WhatsApp.RatePerSecond, cfg.Gateways.WhatsApp.Burst),
		Logger:  logger,
	})
	emailSender := email.NewSender(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, logger)

	blobs, err := a.newBlobStore(ctx)
	if err != nil {
		a.closePartial()
		return nil, err
	}

	events, err := a.newPublisher(ctx)
	if err != nil {
		a.closePartial()
		return nil, err
	}

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		a.closePartial()
		return nil, err
	}
	a.hub = progress.NewHub(progress.Config{
		BufferSize:     cfg.Progress.BufferSize,
		MaxBatchEvents: cfg.Progress.MaxBatchEvents,
		MaxBatchWait:   cfg.Progress.MaxBatchWait(),
		SinkTimeout:    cfg.Progress.SinkTimeout(),
		Logger:         logger,
	}, sinks.NewLogSink(logger), promSink, sinks.NewStoreSink(progressStore, logger))

	a.queue = jobs.NewMemoryQueue(cfg.Jobs.QueueDepth)
	a.workers = jobs.NewPool(a.queue, cfg.Jobs.Workers, logger)

	a.renderer, err = pdf.New(pdf.Config{
		MaxParallel: cfg.Billing.PDFMaxParallel,
		Timeout:     cfg.Billing.PDFTimeout(),
	})
	if err != nil {
		a.closePartial()
		return nil, err
	}

	a.diag = diag.NewService(diag.ServiceConfig{
		AgentBaseURL: cfg.Diag.AgentBaseURL,
		AgentTimeout: cfg.Diag.AgentTimeout(),
		Resolvers:    cfg.Diag.Resolvers,
		RouterTTL:    cfg.Diag.RouterCacheTTL(),
		Lookup:       core,
		Logger:       logger,
	})

	ids := uuidgen.New()
	clk := system.New()

	billingSvc := billing.New(billing.Config{
		Repo:     billingStore,
		Core:     core,
		Renderer: a.renderer,
		Blobs:    blobs,
		Logger:   logger,
	})
	cardSvc := cards.New(cards.Config{
		Repo:      cardStore,
		Core:      core,
		Hasher:    sha256.New(),
		Blobs:     blobs,
		Publisher: events,
		IDs:       ids,
		Clock:     clk,
		Logger:    logger,
	})
	campaignSvc := campaign.New(campaign.Config{
		Repo:      campaignStore,
		Core:      core,
		Templates: notifyStore,
		Queue:     a.queue,
		Sender:    campaignSender(smsGateway, whatsappGateway),
		Progress:  a.hub,
		IDs:       ids,
		Clock:     clk,
		BatchSize: cfg.Jobs.BatchSize,
		Logger:    logger,
	})
	importSvc := importer.New(importer.Config{
		Repo:      importStore,
		Core:      core,
		Queue:     a.queue,
		Progress:  a.hub,
		IDs:       ids,
		Clock:     clk,
		BatchSize: cfg.Jobs.BatchSize,
		Logger:    logger,
	})
	notifySvc := notify.New(notify.Config{
		Repo:     notifyStore,
		Email:    emailSender,
		SMS:      smsGateway,
		WhatsApp: whatsappGateway,
		IDs:      ids,
		Clock:    clk,
		Logger:   logger,
	})
	scheduleSvc := schedule.New(schedule.Config{
		Repo:   scheduleStore,
		Pusher: core,
		IDs:    ids,
		Clock:  clk,
		Logger: logger,
	})
	fupSvc := fup.New(fupStore, ids, clk)
	brandingSvc := branding.New(branding.Config{
		Repo:         brandingStore,
		Blobs:        blobs,
		Resolver:     branding.NewDNSResolver(cfg.Diag.Resolvers, cfg.Diag.AgentTimeout()),
		Issuer:       branding.NewIssuerClient(cfg.Branding.IssuerURL, nil),
		Clock:        clk,
		EdgeHost:     cfg.Branding.EdgeHost,
		MaxLogoBytes: cfg.Branding.MaxLogoBytes,
		Logger:       logger,
	})
	dashboardSvc := dashboard.New(dashboard.Config{
		Core:     core,
		Cache:    dashCache,
		CacheTTL: cfg.Dashboard.CacheTTL(),
		Logger:   logger,
	})

	server := api.NewServer(api.Services{
		Diag:      a.diag,
		Dashboard: dashboardSvc,
		Billing:   billingSvc,
		Cards:     cardSvc,
		Campaigns: campaignSvc,
		Imports:   importSvc,
		Notify:    notifySvc,
		Schedule:  scheduleSvc,
		FUP:       fupSvc,
		Branding:  brandingSvc,
		Progress:  progressStore,
	}, api.Config{
		Auth:           cfg.Auth,
		RequestTimeout: cfg.Server.RequestTimeout(),
		Logger:         logger,
	})
	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// campaignSender picks the gateway campaigns deliver through. Campaigns
// go out over WhatsApp only; the SMS gateway serves notification rules.
func campaignSender(_, whatsapp gateway.Sender) gateway.Sender {
	return whatsapp
}

// newBlobStore picks the artifact store backend.
func (a *App) newBlobStore(ctx context.Context) (storage.BlobStore, error) {
	switch a.cfg.Blob.Backend {
	case "gcs":
		client, err := gcsapi.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		a.gcsClient = client
		return gcs.New(client, a.cfg.Blob.GCSBucket)
	case "local", "":
		return local.New(a.cfg.Blob.BaseDir)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", a.cfg.Blob.Backend)
	}
}

// newPublisher returns the Pub/Sub publisher, or a nop when the broker
// is disabled.
func (a *App) newPublisher(ctx context.Context) (publisher.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		return publisher.Nop{}, nil
	}
	client, err := pubsubv2.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	a.pubsubCli = client
	return pubsubpub.New(client.Publisher(a.cfg.PubSub.TopicName)), nil
}

// Run serves until ctx is canceled, then shuts everything down in
// reverse dependency order: HTTP drain first, then the job pipeline,
// then the progress hub and the clients under them.
func (a *App) Run(ctx context.Context) error {
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		a.workers.Run(workerCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-serveErr:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", zap.Error(err))
	}

	// Let queued work finish; the pool exits when the queue drains.
	a.queue.Close()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		a.logger.Warn("job workers did not drain in time")
		stopWorkers()
		<-workersDone
	}
	stopWorkers()

	if err := a.hub.Close(shutdownCtx); err != nil {
		a.logger.Warn("progress hub close", zap.Error(err))
	}

	a.closeClients()
	return runErr
}

// closePartial releases whatever New managed to build before failing.
func (a *App) closePartial() {
	a.closeClients()
}

func (a *App) closeClients() {
	if a.diag != nil {
		a.diag.Close()
	}
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.pubsubCli != nil {
		if err := a.pubsubCli.Close(); err != nil {
			a.logger.Warn("pubsub close", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs close", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
