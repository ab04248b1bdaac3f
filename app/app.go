package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"promodeals-radar/api"
	"promodeals-radar/cache"
	"promodeals-radar/config"
	"promodeals-radar/database"
	"promodeals-radar/database/analytics"
	"promodeals-radar/notifications"
	"promodeals-radar/realtime"
	"promodeals-radar/scraper"
)

// App owns the long-lived components and their lifecycle
type App struct {
	cfg *config.Config

	db          *database.Database
	analyticsDB *database.DB
	redis       *cache.RedisClient
	broker      *realtime.Broker
	tuner       *AutoTuner
	apiServer   *api.Server
}

// New creates the application
func New(cfg *config.Config) *App {
	return &App{cfg: cfg}
}

// Start connects everything, launches the background loops and blocks until
// a shutdown signal arrives.
func (a *App) Start() error {
	dbPort, err := strconv.Atoi(a.cfg.DatabasePort)
	if err != nil {
		return fmt.Errorf("invalid DB_PORT %q: %w", a.cfg.DatabasePort, err)
	}

	db, err := database.Connect(a.cfg.DatabaseHost, dbPort, a.cfg.DatabaseName,
		a.cfg.DatabaseUser, a.cfg.DatabasePassword)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	a.db = db
	log.Println("✅ Database connection established")

	repo := database.NewDealRepository(db)
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	err = repo.InitSchema(initCtx)
	cancelInit()
	if err != nil {
		return fmt.Errorf("schema initialization failed: %w", err)
	}

	analyticsDB, err := database.NewConnection(database.Config{
		Host:     a.cfg.DatabaseHost,
		Port:     a.cfg.DatabasePort,
		User:     a.cfg.DatabaseUser,
		Password: a.cfg.DatabasePassword,
		DBName:   a.cfg.DatabaseName,
	})
	if err != nil {
		return fmt.Errorf("analytics connection failed: %w", err)
	}
	a.analyticsDB = analyticsDB

	// Optional: the radar runs without Redis, just slower and quieter
	a.redis = cache.NewRedisClient(a.cfg.RedisHost, a.cfg.RedisPort, a.cfg.RedisPassword)

	a.broker = realtime.NewBroker()
	go a.broker.Run()

	heartbeat := &Heartbeat{}
	notifier := notifications.NewTelegramNotifier(a.cfg.TelegramBotToken, a.cfg.Radar.NotifyRatePerSecond)
	subscribers := NewCachedSubscribers(repo, a.redis, a.cfg.AdminChatIDs)

	hunter := NewHunter(HunterDeps{
		Scraper:      scraper.NewHTTPSource(a.cfg.ScraperURL),
		Store:        repo,
		Notifier:     notifier,
		Subscribers:  subscribers,
		Broker:       a.broker,
		AdminChatIDs: a.cfg.AdminChatIDs,
	}, a.cfg.Radar, heartbeat)

	a.tuner = NewAutoTuner(
		analytics.NewRepository(analyticsDB.GetConn()),
		repo,
		a.redis,
		time.Duration(a.cfg.Radar.TunerIntervalHours)*time.Hour,
	)
	go a.tuner.Start()

	a.apiServer = api.NewServer(repo, a.broker, heartbeat.Last,
		time.Duration(a.cfg.Radar.StaleAfterMinutes)*time.Minute, a.cfg.APIPort)
	go func() {
		if err := a.apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ API server failed: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go hunter.Run(ctx)

	a.waitForShutdown(cancel)
	return nil
}

// waitForShutdown blocks on SIGINT/SIGTERM, then tears components down in
// dependency order under a deadline.
func (a *App) waitForShutdown(cancelHunter context.CancelFunc) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("📡 Shutting down...")
	cancelHunter()
	a.tuner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.apiServer.Shutdown(ctx); err != nil {
		log.Printf("⚠️  API server shutdown: %v", err)
	}

	if err := a.redis.Close(); err != nil {
		log.Printf("⚠️  Redis close: %v", err)
	}
	if err := a.analyticsDB.Close(); err != nil {
		log.Printf("⚠️  Analytics DB close: %v", err)
	}
	if err := a.db.Close(); err != nil {
		log.Printf("⚠️  Database close: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
