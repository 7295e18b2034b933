package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework
	"go.uber.org/zap"

	"github.com/iliyamo/pharmacy-marketplace/internal/config" // Internal config loader
	"github.com/iliyamo/pharmacy-marketplace/internal/database"
	"github.com/iliyamo/pharmacy-marketplace/internal/handler"
	"github.com/iliyamo/pharmacy-marketplace/internal/logging"
	"github.com/iliyamo/pharmacy-marketplace/internal/middleware"
	"github.com/iliyamo/pharmacy-marketplace/internal/queue"
	"github.com/iliyamo/pharmacy-marketplace/internal/repository"
	"github.com/iliyamo/pharmacy-marketplace/internal/router" // Internal router setup
	"github.com/iliyamo/pharmacy-marketplace/internal/service"
	"github.com/iliyamo/pharmacy-marketplace/internal/storage"
)

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "pharmacy-marketplace")
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	// ---- Repositories ----
	accounts := repository.NewAccountRepo(db)
	partners := repository.NewPartnerRepo(db)
	offers := repository.NewOfferRepo(db)
	pharmacies := repository.NewPharmacyRepo(db)
	reservations := repository.NewReservationRepo(db)
	notifications := repository.NewNotificationRepo(db)
	outboxRepo := repository.NewOutboxRepo(db)

	// ---- Side effects: outbox, relay, sink ----
	outbox := queue.NewOutbox(outboxRepo)
	sink := queue.NewSink(notifications, repository.NewConversationRepo(db), log)

	var pub queue.Publisher = queue.NewDirectPublisher(sink)
	if cfg.RabbitURL != "" {
		amqpPub := queue.NewAMQPPublisher(cfg.RabbitURL, log)
		defer amqpPub.Close()
		pub = amqpPub

		consumer := queue.NewConsumer(cfg.RabbitURL, sink, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("consumer stopped", zap.Error(err))
			}
		}()
	} else {
		log.Info("no broker configured, delivering outbox events in-process")
	}
	relay := queue.NewRelay(outboxRepo, pub, log, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go relay.Run(ctx)

	// ---- Services ----
	access := service.NewAccess(repository.NewAccessRepo(db), accounts, cfg.Policy())
	partnerSvc := service.NewPartnerService(partners, accounts, outbox, log)
	moderationSvc := service.NewModerationService(offers, access, outbox, log)
	reservationSvc := service.NewReservationService(reservations, offers, pharmacies, accounts, access, outbox, log)
	notificationSvc := service.NewNotificationService(notifications)

	store, err := storage.New(ctx, cfg.Upload, log)
	if err != nil {
		log.Fatal("init file store", zap.Error(err))
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb, log))

	router.RegisterRoutes(e, db) // Register application routes
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, accounts), cfg.JWTSecret)
	router.RegisterPartner(e, handler.NewPartnerHandler(partnerSvc), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewAdminHandler(partnerSvc), access, cfg.JWTSecret)
	router.RegisterOffers(e, handler.NewOfferHandler(moderationSvc), access, cfg.JWTSecret)
	router.RegisterReservations(e, handler.NewReservationHandler(reservationSvc), cfg.JWTSecret)
	router.RegisterNotifications(e, handler.NewNotificationHandler(notificationSvc), cfg.JWTSecret)
	router.RegisterUploads(e, handler.NewUploadHandler(store, access), cfg.JWTSecret)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	log.Info("stopped")
}
