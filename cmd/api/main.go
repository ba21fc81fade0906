package main

import (
	"database/sql"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/exp/slog"

	"go-crash/internal/config"
	betHandler "go-crash/internal/http-server/handlers/crash/bet"
	"go-crash/internal/http-server/handlers/crash/history"
	roundHandler "go-crash/internal/http-server/handlers/crash/round"
	"go-crash/internal/http-server/handlers/crash/settings"
	"go-crash/internal/http-server/handlers/event"
	"go-crash/internal/http-server/handlers/job"
	"go-crash/internal/http-server/handlers/mysql"
	"go-crash/internal/http-server/handlers/provably_fair"
	"go-crash/internal/http-server/handlers/user/balance"
	"go-crash/internal/http-server/middleware/logger"
	"go-crash/internal/lib/logger/handler/slogpretty"
	"go-crash/internal/lib/logger/sl"
	"go-crash/internal/repository"
	wshandler "go-crash/internal/ws/handler"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const (
	jobQueueSize   = 100
	jobWorkerCount = 5
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting server...", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	if err = db.Ping(); err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	handler := mysql.New(db)

	roundRepo := repository.NewRoundRepository(*handler)
	betRepo := repository.NewBetRepository(*handler)
	userRepo := repository.NewUserRepository(*handler)
	seedRepo := repository.NewServerSeedRepository(*handler)
	settingsRepo := repository.NewSettingsRepository(*handler)

	hub := wshandler.NewHub(log)
	pusherEvent := event.NewHubEvent(log, hub)

	provablyFair := provably_fair.NewProvablyFair(*seedRepo, log)

	if err = ensureServerSeed(seedRepo, provablyFair); err != nil {
		log.Error("Failed to init server seed", sl.Err(err))
		os.Exit(1)
	}

	settingsProvider := settings.NewProvider(settingsRepo, log)

	historyBuf := history.NewBuffer()
	if err = historyBuf.Load(roundRepo); err != nil {
		log.Error("Failed to load crash history", sl.Err(err))
	}

	userBalance := balance.NewBalance(*userRepo, log, pusherEvent)

	queue := make(job.JobQueue, jobQueueSize)
	workerPool := job.NewWorkerPool(jobWorkerCount, queue)
	workerPool.Start()

	dispatcher := job.NewDispatcher(queue)

	manager := roundHandler.NewManager(
		log,
		*roundRepo,
		*betRepo,
		*userRepo,
		provablyFair,
		settingsProvider,
		historyBuf,
		pusherEvent,
		userBalance,
		dispatcher)

	hub.SetSnapshotProvider(manager)
	hub.RunServer()

	ledger := betHandler.NewLedger(
		log,
		*roundRepo,
		*betRepo,
		*userRepo,
		settingsProvider,
		userBalance,
		pusherEvent)

	placeBet := betHandler.NewPlace(log, *userRepo, ledger)
	cashOut := betHandler.NewCashOut(log, *userRepo, ledger)
	currentRound := roundHandler.NewCurrent(log, manager)
	crashHistory := history.NewHistory(log, historyBuf)
	fairCheck := provably_fair.NewFairCheck(log, *roundRepo, provablyFair)
	rotateSeed := provably_fair.NewRotate(log, provablyFair)

	watchdog := roundHandler.NewWatchdog(log, manager, cfg.Watchdog)
	watchdog.Run()

	if err = manager.CreateRound(); err != nil {
		log.Error("Failed to create first round", sl.Err(err))
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Post("/crash/bets", placeBet.New())
	router.Post("/crash/bets/{uuid}/cashout", cashOut.New())
	router.Get("/crash/rounds/current", currentRound.New())
	router.Get("/crash/rounds/{uuid}/fair", fairCheck.New())
	router.Get("/crash/history", crashHistory.New())
	router.Post("/crash/seed/rotate", rotateSeed.New())
	router.Get("/ws", hub.HandleConnection)

	log.Info("Server started", slog.String("address", cfg.Address))

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	if err = srv.ListenAndServe(); err != nil {
		log.Error("Server failed", sl.Err(err))
	}

	log.Error("Server stopped")
}

// ensureServerSeed installs the first seed on a fresh database so round
// creation never starts without one.
func ensureServerSeed(seedRepo *repository.ServerSeedRepository, fair *provably_fair.ProvablyFair) error {
	current, err := seedRepo.GetCurrent()
	if err != nil {
		return err
	}

	if current != nil {
		return nil
	}

	_, err = fair.Rotate()

	return err
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlogLogger()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlogLogger() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
