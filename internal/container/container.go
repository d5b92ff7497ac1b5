// Package container manages application dependencies and lifecycle, with
// ordered initialization and reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/medikos/caseflow/internal/application/dispatcher"
	"github.com/medikos/caseflow/internal/application/ledger"
	"github.com/medikos/caseflow/internal/application/port"
	"github.com/medikos/caseflow/internal/application/service"
	"github.com/medikos/caseflow/internal/config"
	"github.com/medikos/caseflow/internal/domain/event"
	"github.com/medikos/caseflow/internal/domain/workflow"
	"github.com/medikos/caseflow/internal/infrastructure/persistence/repository"
	"github.com/medikos/caseflow/internal/infrastructure/persistence/sqlite"
	"github.com/medikos/caseflow/internal/interfaces/ws"
	"github.com/medikos/caseflow/migrations"
	"github.com/medikos/caseflow/pkg/database"
)

// RepositoryBundle groups all repositories for convenient access
type RepositoryBundle struct {
	Case         port.CaseRepository
	Version      port.VersionRepository
	Assignment   port.AssignmentRepository
	Audit        port.AuditRepository
	Notification port.NotificationRepository
}

// ServiceBundle groups all application services
type ServiceBundle struct {
	Case         service.CaseService
	Version      service.VersionService
	Notification service.NotificationService
	Query        service.QueryService
}

// Container owns every long-lived component of the engine
type Container struct {
	config *config.Config
	logger *zap.Logger

	db           *database.DB
	txManager    *sqlite.DB
	repositories *RepositoryBundle

	ledger     *ledger.Ledger
	dispatcher dispatcher.Dispatcher
	hub        *ws.Hub
	services   *ServiceBundle

	started atomic.Bool
	closed  atomic.Bool
	mu      sync.Mutex
}

// NewContainer creates a new container from configuration. Components are not
// initialized until Start.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Container{config: cfg, logger: logger}, nil
}

// Start initializes all components in dependency order: database and
// repositories first, then the ledger and dispatcher, then the services.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("container already started")
	}

	db, err := database.New(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	c.db = db

	migrator := database.NewMigrator(db, c.logger)
	if err := migrator.Run(migrations.FS); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	c.txManager = sqlite.NewDB(db.DB, c.logger)

	c.repositories = &RepositoryBundle{
		Case:         repository.NewCaseRepository(db.DB, c.logger),
		Version:      repository.NewVersionRepository(db.DB, c.logger),
		Assignment:   repository.NewAssignmentRepository(db.DB, c.logger),
		Audit:        repository.NewAuditRepository(db.DB, c.logger),
		Notification: repository.NewNotificationRepository(db.DB, c.logger),
	}

	c.ledger = ledger.New(
		c.repositories.Assignment,
		c.config.Workflow.ClaimTimeout,
		ledger.WithLogger(&zapLoggerAdapter{logger: c.logger}),
	)

	c.dispatcher = dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: c.logger}),
	)

	c.hub = ws.NewHub(c.logger)

	svcLogger := &zapLoggerAdapter{logger: c.logger}
	policy := workflow.Policy{
		MinJustificationLen: c.config.Workflow.MinJustificationLen,
	}

	notificationService := service.NewNotificationService(c.repositories.Notification, c.hub, svcLogger)

	c.services = &ServiceBundle{
		Case: service.NewCaseService(
			c.repositories.Case,
			c.repositories.Version,
			c.repositories.Audit,
			c.repositories.Notification,
			c.ledger,
			c.txManager,
			c.dispatcher,
			policy,
			svcLogger,
		),
		Version: service.NewVersionService(
			c.repositories.Case,
			c.repositories.Version,
			c.repositories.Audit,
			c.ledger,
			c.txManager,
			c.dispatcher,
			svcLogger,
		),
		Notification: notificationService,
		Query: service.NewQueryService(
			c.repositories.Case,
			c.repositories.Version,
			c.repositories.Audit,
			c.ledger,
			svcLogger,
		),
	}

	c.dispatcher.Subscribe(event.TypeCaseTransitioned, "notification-push", notificationService.HandleCaseTransitioned)

	c.logger.Info("Container started")
	return nil
}

// Close tears components down in reverse order of initialization
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			return err
		}
	}

	c.logger.Info("Container closed")
	return nil
}

// Services returns the application services
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Hub returns the websocket push hub
func (c *Container) Hub() *ws.Hub {
	return c.hub
}

// zapLoggerAdapter adapts zap.Logger to the minimal key-value Logger
// interfaces declared by the application packages
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
