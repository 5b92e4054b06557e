package bootstrap

import (
	"context"
	"fmt"
	"time"

	"inventory-assistant-be/internal/config"
	"inventory-assistant-be/internal/flows"
	"inventory-assistant-be/internal/handler"
	"inventory-assistant-be/internal/maintenance"
	"inventory-assistant-be/internal/pkg/fileutil"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/internal/pkg/mailer"
	"inventory-assistant-be/internal/pkg/workerpool"
	"inventory-assistant-be/internal/repository/jsonfile"
	"inventory-assistant-be/internal/repository/memory"
	"inventory-assistant-be/internal/repository/postgres"
	"inventory-assistant-be/internal/service"
	"inventory-assistant-be/internal/websocket"
	"inventory-assistant-be/pkg/acts"
	"inventory-assistant-be/pkg/dialog/router"
	"inventory-assistant-be/pkg/dialog/workflow"
	"inventory-assistant-be/pkg/docgen"
	"inventory-assistant-be/pkg/events"
	"inventory-assistant-be/pkg/inventory"
	pktNats "inventory-assistant-be/pkg/nats"
	"inventory-assistant-be/pkg/ocr"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	entityCacheTTL  = 300 * time.Second
	dispatchTimeout = 2 * time.Minute
)

type Container struct {
	Logger logger.ILogger

	GatewayHandler   *handler.GatewayHandler
	WebSocketHub     *websocket.Hub
	DispatchConsumer service.IDispatchConsumer
	Scheduler        *maintenance.Scheduler
	AuditService     *service.AuditService

	pool    *workerpool.Pool
	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	natsSub *pktNats.Subscriber
	rdb     *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config, sysLogger logger.ILogger) (*Container, error) {
	c := &Container{Logger: sysLogger}

	// 1. Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.Broker.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "NATS publisher unavailable, domain events are only logged", map[string]interface{}{"error": err.Error()})
	}
	c.natsPub = natsPub
	var bus events.Publisher
	if natsPub != nil {
		bus = natsPub
	}
	eventPublisher := service.NewEventPublisher(bus, sysLogger)

	natsSub, err := pktNats.NewSubscriber(cfg.Broker.NatsURL, sysLogger)
	if err != nil {
		sysLogger.Warn("Bootstrap", "NATS subscriber unavailable, audit disabled", map[string]interface{}{"error": err.Error()})
	}
	c.natsSub = natsSub
	if natsSub != nil {
		c.AuditService = service.NewAuditService(natsSub, sysLogger)
	}

	c.rdb = newRedis(cfg.Broker.RedisURL, sysLogger)
	c.WebSocketHub = websocket.NewHub(c.rdb, sysLogger)

	// 2. Storage
	datastore := postgres.NewInventoryRepository(db, sysLogger)
	records, err := jsonfile.NewRepository(cfg.Data.Dir, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	sessions := memory.NewSessionRepository()
	remover := fileutil.NewRemover(fileutil.DefaultRetry, sysLogger)

	// 3. Dialogue engine
	coordinator := acts.NewCoordinator(mailer.NewEmailService(cfg.SMTP, sysLogger), datastore, remover, sysLogger)
	f := flows.New(flows.Deps{
		Sessions:   sessions,
		Datastore:  datastore,
		Entities:   inventory.NewEntityCache(datastore, entityCacheTTL),
		Recognizer: ocr.NewClient(cfg.OCR.BaseURL, cfg.OCR.Model, cfg.OCR.Timeout),
		Records:    records,
		Selections: records,
		Documents:  docgen.NewGenerator(cfg.Transfer.ActsDir),
		Acts:       coordinator,
		Remover:    remover,
		Events:     eventPublisher,
		Logger:     sysLogger,
		Config: flows.Config{
			MaxPhotos: cfg.Transfer.MaxPhotos,
			Databases: cfg.Database.AvailableDatabases,
			DefaultDB: cfg.Database.DefaultDatabase,
		},
	})

	registry := workflow.NewRegistry()
	if err := f.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register workflows: %w", err)
	}
	dispatcher := router.New(workflow.NewExecutor(registry, sessions, sysLogger), sessions, sysLogger,
		router.WithDefaults(f.Defaults()...),
		router.WithReleaser(f),
		router.WithResponder(c.WebSocketHub),
		router.WithAllowedUsers(cfg.App.AllowedUsers),
		router.WithAllowedGroup(cfg.App.AllowedGroupID),
	)

	// 4. Event bus between the HTTP gateway and the dispatcher
	c.pubSub = gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)
	c.pool = workerpool.New(cfg.Worker.PoolSize, cfg.Worker.QueueSize, sysLogger)
	c.DispatchConsumer = service.NewDispatchConsumer(c.pubSub, service.ChatEventsTopic, c.pool, dispatcher, dispatchTimeout, sysLogger)

	var audit handler.EventCounter
	if c.AuditService != nil {
		audit = c.AuditService
	}
	c.GatewayHandler = handler.NewGatewayHandler(
		service.NewChatEventPublisher(service.ChatEventsTopic, c.pubSub),
		c.WebSocketHub,
		sessions,
		audit,
		cfg.Keys.GatewayJWTSecret,
		cfg.Data.TempDir,
		sysLogger,
	)

	// 5. Maintenance
	backups := maintenance.NewBackuper(maintenance.BackupConfig{
		DataDir:    cfg.Data.Dir,
		BackupDir:  cfg.Maintenance.BackupDir,
		MaxBackups: cfg.Maintenance.MaxBackups,
		Files:      jsonfile.BackupSet,
	}, sysLogger)
	cleaner := maintenance.NewCleaner([]string{cfg.Data.TempDir}, cfg.Transfer.ActsDir, remover, sysLogger)
	c.Scheduler = maintenance.NewScheduler(maintenance.SchedulerConfig{
		CheckInterval:  cfg.Maintenance.CheckInterval,
		BackupInterval: cfg.Maintenance.BackupInterval,
		CleanupEvery:   cfg.Maintenance.CleanupEvery,
		CleanupAge:     time.Duration(cfg.Maintenance.CleanupHours) * time.Hour,
	}, backups, cleaner, eventPublisher, sysLogger)

	return c, nil
}

func newRedis(url string, log logger.ILogger) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("Bootstrap", "Failed to parse Redis URL, using it as address", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Bootstrap", "Redis unavailable, replies stay on this instance", map[string]interface{}{"error": err.Error()})
		rdb.Close()
		return nil
	}
	return rdb
}

// Start launches the background workers. They stop when ctx is cancelled or
// Shutdown is called.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.DispatchConsumer.Consume(ctx); err != nil {
		return fmt.Errorf("failed to start dispatch consumer: %w", err)
	}
	if c.AuditService != nil {
		if err := c.AuditService.Start(ctx); err != nil {
			c.Logger.Warn("Bootstrap", "Audit service not started", map[string]interface{}{"error": err.Error()})
		}
	}
	if err := c.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start maintenance scheduler: %w", err)
	}
	return nil
}

// Shutdown stops intake first, then drains queued events, then closes the
// external connections.
func (c *Container) Shutdown(ctx context.Context, schedulerTimeout time.Duration) {
	if err := c.pubSub.Close(); err != nil {
		c.Logger.Warn("Bootstrap", "Failed to close event bus", map[string]interface{}{"error": err.Error()})
	}
	if err := c.pool.Shutdown(ctx); err != nil {
		c.Logger.Warn("Bootstrap", "Worker pool did not drain", map[string]interface{}{"error": err.Error()})
	}
	c.Scheduler.Stop(schedulerTimeout)

	if c.natsSub != nil {
		c.natsSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		c.rdb.Close()
	}
}
