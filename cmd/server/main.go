package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/correlation"
	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/router"
	"github.com/iliyamo/table-reservation/internal/scheduler"
	"github.com/iliyamo/table-reservation/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx,
		database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName),
		database.Pool{MaxOpen: cfg.DBMaxOpenConns, MaxIdle: cfg.DBMaxIdleConns, MaxLifetime: cfg.DBConnMaxLifetime},
	)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	// nil when Redis is unreachable; cache and limiter degrade.
	rdb := config.NewRedisClient(ctx)
	if rdb != nil {
		defer rdb.Close()
	}

	broker, err := queue.Open(cfg.Broker, cfg.AMQPURL, cfg.NATSURL, cfg.ConsumerGroup)
	if err != nil {
		return err
	}
	defer broker.Close()

	clock := clockwork.NewRealClock()
	restaurants := correlation.NewRegistry[queue.RestaurantValidation]("restaurant-validation", clock, cfg.CorrelationTTL)
	hours := correlation.NewRegistry[queue.TimeValidation]("time-validation", clock, cfg.CorrelationTTL)
	tableReplies := correlation.NewRegistry[queue.FindAvailableTableResult]("table-search", clock, cfg.CorrelationTTL)

	gateway := service.NewGateway(broker, restaurants, hours, cfg.ValidationTimeout)
	cache := service.NewTableStatusCache(rdb, config.LoadTableCacheConfig())
	tables := service.NewTableResolver(broker, tableReplies, cache, clock, cfg.TableTimeout)
	store := repository.NewStore(db)
	manager := service.NewManager(service.ManagerDeps{
		Store:       store,
		Gateway:     gateway,
		Tables:      tables,
		Quotas:      service.NewQuotaLedger(store, cfg.Policy, cfg.Quota.Defaults()),
		Events:      service.NewEventPublisher(broker, clock),
		Policy:      cfg.Policy,
		Clock:       clock,
		MaxInFlight: cfg.MaxInFlight,
	})

	subscriptions := map[string]queue.HandlerFunc{
		queue.TopicRestaurantValidation:    gateway.HandleRestaurantValidation(),
		queue.TopicTimeValidation:          gateway.HandleTimeValidation(),
		queue.TopicFindAvailableTableReply: tables.HandleFindAvailableTableResult(),
		queue.TopicTableStatusChanged:      cache.HandleTableStatusChanged(),
	}
	for topic, h := range subscriptions {
		if err := broker.Subscribe(ctx, topic, h); err != nil {
			return err
		}
	}

	sched, err := scheduler.New(clock)
	if err != nil {
		return err
	}
	if err := sched.AddReservationSweep(cfg.SweepInterval, cfg.SweepInterval, manager); err != nil {
		return err
	}
	if err := sched.AddCorrelationSweep(cfg.CorrelationSweepInterval, restaurants, hours, tableReplies); err != nil {
		return err
	}
	sched.Start()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, db)
	router.RegisterReservations(e,
		handler.NewReservationHandler(manager),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		log.Printf("server: listening on %s (env=%s broker=%s)", addr, cfg.Env, cfg.Broker)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sched.Shutdown(); err != nil {
			log.Printf("server: scheduler shutdown: %v", err)
		}
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
