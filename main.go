package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"guild-quest-engine/config"
	"guild-quest-engine/handlers"
	"guild-quest-engine/metrics"
	"guild-quest-engine/models"
	"guild-quest-engine/services"
	"guild-quest-engine/utils"
	"guild-quest-engine/workers"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}

	listen := pflag.String("listen", cfg.ListenAddr, "HTTP listen address")
	runWorkers := pflag.Bool("workers", true, "run roster sync and shop purchase workers")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	catalog, err := models.LoadBadgeCatalog()
	if err != nil {
		log.Fatal("failed to load badge catalog:", err)
	}

	var archiver services.ReportArchiver
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		archiver = r2
	} else {
		log.Println("⚠️  R2_BUCKET_NAME not set, mission reports will not be archived")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	badgeService := services.NewBadgeService(db, catalog)
	if err := badgeService.SeedCatalog(ctx); err != nil {
		log.Fatal("failed to seed badge catalog:", err)
	}
	progressionService := services.NewProgressionService(db, badgeService, m)
	missionService := services.NewMissionService(db, progressionService, archiver, m)
	taskService := services.NewTaskService(db, progressionService, missionService, m)
	bossService := services.NewBossService(db, progressionService, missionService, m)

	scheduler, err := missionService.StartExpiryScheduler(ctx, cfg.ExpiryScanInterval)
	if err != nil {
		log.Fatal("failed to start mission expiry scheduler:", err)
	}

	if *runWorkers && cfg.WorkersConfigured() {
		client := workers.NewSyncClient(cfg.SyncServiceURL, cfg.GameServiceToken)
		workers.NewRosterSyncWorker(db, client, cfg.RosterSyncInterval).Start(ctx)
		workers.NewShopPurchaseWorker(client, missionService, cfg.ShopPollInterval).Start(ctx)
		log.Println("✅ Roster sync and shop purchase workers running")
	} else {
		log.Println("⚠️  Sync workers disabled (need --workers and SYNC_SERVICE_URL + GAME_SERVICE_TOKEN)")
	}

	app := handlers.NewApp(cfg, handlers.Services{
		Tasks:       taskService,
		Missions:    missionService,
		Bosses:      bossService,
		Progression: progressionService,
		Gatherer:    prometheus.DefaultGatherer,
	})

	go func() {
		if err := app.Listen(*listen); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on %s", *listen)
	log.Printf("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := scheduler.Shutdown(); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
