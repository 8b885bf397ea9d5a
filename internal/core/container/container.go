package container

import (
	"context"
	"fmt"

	"farmfleet/internal/allocation"
	auditLogRepo "farmfleet/internal/auditlog"
	"farmfleet/internal/binding"
	"farmfleet/internal/core/config"
	"farmfleet/internal/deliveries"
	"farmfleet/internal/farms"
	"farmfleet/internal/integrations/googlesheets"
	"farmfleet/internal/integrations/jira"
	"farmfleet/internal/listing"
	"farmfleet/internal/metrics"
	"farmfleet/internal/middleware"
	"farmfleet/internal/printsheet"
	"farmfleet/internal/production"
	"farmfleet/internal/qrcodes"
	"farmfleet/internal/rate_limiter"
	"farmfleet/internal/repository"
	"farmfleet/pkg/auditlog"
	"farmfleet/pkg/metadata"
	"farmfleet/pkg/security"

	"go.uber.org/zap"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

type Container struct {
	Config        *config.Config
	Store         *repository.Store
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	Authenticator *security.Authenticator
	AuditLog      *auditlog.Auditlog
	RateLimiter   *rate_limiter.RateLimiter
	HealthChecker *middleware.HealthChecker

	BatchManager *production.Manager

	QRCodeHandler     *qrcodes.QRCodeHandler
	BatchHandler      *production.BatchHandler
	AllocationHandler *allocation.AllocationHandler
	DeliveryHandler   *deliveries.DeliveryHandler
	BindingHandler    *binding.BindingHandler
	ListingHandler    *listing.ListingHandler
	PrintSheetHandler *printsheet.PrintSheetHandler
	ManifestHandler   *googlesheets.ManifestHandler
	HistoryHandler    *auditLogRepo.HistoryHandler
}

// NewAppContainer wires every service over an already opened store.
// Optional integrations are left out when their configuration is missing.
func NewAppContainer(ctx context.Context, cfg *config.Config, store *repository.Store, log *zap.Logger) (*Container, error) {
	authenticator, err := security.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("authenticator: %w", err)
	}

	m := metrics.New()

	qrRepo := qrcodes.NewRepository(store)
	batchRepo := production.NewRepository(store)
	deliveryRepo := deliveries.NewRepository(store)
	listingRepo := listing.NewRepository(store)
	farmRepo := farms.NewRepository(store)
	auditRepo := auditLogRepo.NewRepository(store)
	auditLog := auditlog.NewAuditLog(auditRepo, log)

	registry := qrcodes.NewRegistry(
		qrRepo,
		farmRepo,
		auditLog,
		metadata.NewShortCodeGenerator(cfg.ShortCodePrefix),
		m,
		log.Named("qrcodes"),
	)

	var reporter production.DefectReporter
	if cfg.Jira.Enabled() {
		reporter = jira.NewDefectReporter(cfg.Jira, log.Named("jira"))
	} else {
		log.Info("Jira defect reporting disabled")
	}
	batchManager := production.NewManager(batchRepo, registry, auditLog, reporter, m, log.Named("production"))

	engine := allocation.NewEngine(qrRepo, farmRepo, auditLog, m, log.Named("allocation"))
	deliveryManager := deliveries.NewManager(deliveryRepo, engine, qrRepo, farmRepo, auditLog, m, log.Named("deliveries"))
	bindingService := binding.NewService(qrRepo, farmRepo, auditLog, m, log.Named("binding"))
	lister := listing.NewLister(listingRepo, batchManager, log.Named("listing"))
	renderer := printsheet.NewRenderer(lister, printsheet.A4Grid, log.Named("printsheet"))

	var exporter googlesheets.Exporter
	if cfg.GoogleSheets.Enabled() {
		appender, err := googlesheets.NewSheetsAppender(ctx, cfg.GoogleSheets.CredentialsJSON)
		if err != nil {
			return nil, fmt.Errorf("google sheets: %w", err)
		}
		exporter = googlesheets.NewManifestExporter(lister, appender, cfg.GoogleSheets, log.Named("googlesheets"))
	} else {
		log.Info("Google Sheets manifest export disabled")
	}

	return &Container{
		Config:        cfg,
		Store:         store,
		Logger:        log,
		Metrics:       m,
		Authenticator: authenticator,
		AuditLog:      auditLog,
		RateLimiter:   rate_limiter.NewRateLimiter(cfg.BatchCreateLimit, cfg.BatchCreateWindow),
		HealthChecker: middleware.NewHealthChecker(store, Version, log),

		BatchManager: batchManager,

		QRCodeHandler:     qrcodes.NewHandler(registry),
		BatchHandler:      production.NewHandler(batchManager),
		AllocationHandler: allocation.NewHandler(engine),
		DeliveryHandler:   deliveries.NewHandler(deliveryManager),
		BindingHandler:    binding.NewHandler(bindingService),
		ListingHandler:    listing.NewHandler(lister),
		PrintSheetHandler: printsheet.NewHandler(renderer),
		ManifestHandler:   googlesheets.NewManifestHandler(exporter),
		HistoryHandler:    auditLogRepo.NewHistoryHandler(auditRepo),
	}, nil
}

// Shutdown waits for background supplier reports and releases resources.
func (c *Container) Shutdown() error {
	c.BatchManager.Wait()
	c.RateLimiter.Stop()
	return c.Store.Close()
}
