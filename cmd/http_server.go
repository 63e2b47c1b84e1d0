package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	gormpg "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/star4ce/star4ce-backend/internal"
	"github.com/star4ce/star4ce-backend/internal/analytics"
	analyticspg "github.com/star4ce/star4ce-backend/internal/analytics/postgres"
	"github.com/star4ce/star4ce-backend/internal/auth"
	authpg "github.com/star4ce/star4ce-backend/internal/auth/postgres"
	"github.com/star4ce/star4ce-backend/internal/billing"
	billingtypes "github.com/star4ce/star4ce-backend/internal/core/datamodel/billing"
	"github.com/star4ce/star4ce-backend/internal/core/events"
	"github.com/star4ce/star4ce-backend/internal/employee"
	employeepg "github.com/star4ce/star4ce-backend/internal/employee/postgres"
	"github.com/star4ce/star4ce-backend/internal/governance"
	governancepg "github.com/star4ce/star4ce-backend/internal/governance/postgres"
	"github.com/star4ce/star4ce-backend/internal/mailer"
	"github.com/star4ce/star4ce-backend/internal/permission"
	permissionpg "github.com/star4ce/star4ce-backend/internal/permission/postgres"
	"github.com/star4ce/star4ce-backend/internal/subscription"
	subscriptionpg "github.com/star4ce/star4ce-backend/internal/subscription/postgres"
	"github.com/star4ce/star4ce-backend/internal/survey"
	surveypg "github.com/star4ce/star4ce-backend/internal/survey/postgres"
	"github.com/star4ce/star4ce-backend/internal/transport/middleware"
	"github.com/star4ce/star4ce-backend/internal/transport/rest"
	"github.com/star4ce/star4ce-backend/pkg/logger"
	"github.com/star4ce/star4ce-backend/pkg/redis"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config        *internal.Config
	DB            *sqlx.DB
	Router        *chi.Mux
	BillingClient *billing.Client
	AuthService   *auth.Service
	SubService    *subscription.Service
	Logger        *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Background maintenance lives alongside the server process.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go runReconcileWorker(workerCtx, deps)
	go runCleanupWorker(workerCtx, deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("received signal, shutting down", "signal", sig)
		stopWorkers()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("server shutdown error", "error", err)
		}
		deps.BillingClient.Shutdown()
		if err := deps.DB.Close(); err != nil {
			deps.Logger.Error("database close error", "error", err)
		}
	case err := <-serverErrChan:
		stopWorkers()
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if config.Logging.Format == "json" {
		logger.Init("production")
	} else {
		logger.Init("development")
	}
	log := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := gorm.Open(gormpg.New(gormpg.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	var redisClient *goredis.Client
	if config.Redis.Addr != "" {
		host, port := splitAddr(config.Redis.Addr)
		redisClient, err = redis.NewClient(redis.Config{
			Host:     host,
			Port:     port,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		if err != nil {
			// Rate limiting fails open without Redis; boot anyway.
			log.Warn("redis unavailable, rate limiting disabled", "error", err)
			redisClient = nil
		}
	}

	var mail mailer.Mailer
	if config.Email.SendGridAPIKey != "" {
		mail = mailer.NewSendGridMailer(config.Email.SendGridAPIKey, config.Email.FromAddress, config.Email.FromName, log)
	} else {
		log.Warn("no sendgrid api key configured, emails will only be logged")
		mail = mailer.NewNoopMailer(log)
	}

	eventBus := events.NewEventBus(log)

	billingClient := billing.NewClient(billing.Config{
		APIBaseURL:    config.Billing.APIBaseURL,
		APIKey:        config.Billing.APIKey,
		WebhookSecret: config.Billing.WebhookSecret,
		PriceID:       config.Billing.PriceID,
		Timeout:       config.Billing.Timeout,
		MaxWorkers:    config.Billing.MaxWorkers,
		JobQueueSize:  config.Billing.JobQueueSize,
	}, log)

	// Repositories.
	authRepo := authpg.NewRepository(gormDB)
	permissionRepo := permissionpg.NewRepository(gormDB)
	subscriptionRepo := subscriptionpg.NewRepository(gormDB)
	surveyRepo := surveypg.NewRepository(gormDB)
	employeeRepo := employeepg.NewRepository(gormDB)
	governanceRepo := governancepg.NewRepository(gormDB)
	analyticsRepo := analyticspg.NewRepository(db)

	// Services.
	tokenGen := auth.NewJWTTokenGenerator(config.Security.TokenSecret, config.Security.TokenDuration)
	authService := auth.NewService(authRepo, tokenGen, mail, config.Security.BCryptCost, log)
	permissionService := permission.NewService(permissionRepo, log)
	subscriptionService := subscription.NewService(subscriptionRepo, billingClient, eventBus, log)
	surveyService := survey.NewService(surveyRepo, permissionService, subscriptionService, mail, eventBus, config.Server.FrontendBaseURL, log)
	employeeService := employee.NewService(employeeRepo, permissionService, subscriptionService, log)
	analyticsService := analytics.NewService(analyticsRepo, permissionService, subscriptionService, log)
	governanceService := governance.NewService(governanceRepo, eventBus, log)

	// Reconcile results land back on subscription state.
	billingClient.RegisterStatusHandler(func(job billing.ReconcileJob, sub *billingtypes.Subscription, err error) {
		if err != nil {
			log.Warn("reconcile fetch failed", "dealership_id", job.DealershipID, "error", err)
			return
		}
		if applyErr := subscriptionService.ApplyProviderState(job.DealershipID, sub); applyErr != nil {
			log.Error("reconcile apply failed", "dealership_id", job.DealershipID, "error", applyErr)
		}
	})

	// Approved managers get a welcome email.
	eventBus.Subscribe(events.EventTypeManagerApproved, func(ctx context.Context, event events.Event) error {
		approved, ok := event.(*events.ManagerApprovedEvent)
		if !ok {
			return nil
		}
		u, err := authRepo.GetUserByID(approved.UserID)
		if err != nil || u == nil {
			return err
		}
		dealershipName := ""
		if u.DealershipID != nil {
			if d, err := subscriptionRepo.GetDealershipByID(*u.DealershipID); err == nil && d != nil {
				dealershipName = d.Name
			}
		}
		return mail.SendApprovalNotice(ctx, u.Email, dealershipName)
	})

	// Handlers and routing.
	var rateLimiter *middleware.RateLimiter
	if redisClient != nil {
		rateLimiter = middleware.NewRateLimiter(redisClient, config.Redis.RateLimitPerMinute, log)
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, db.DB, rest.Handlers{
		Auth:         auth.NewHandler(authService),
		Permission:   permission.NewHandler(permissionService),
		Subscription: subscription.NewHandler(subscriptionService),
		Survey:       survey.NewHandler(surveyService),
		Employee:     employee.NewHandler(employeeService),
		Analytics:    analytics.NewHandler(analyticsService),
		Governance:   governance.NewHandler(governanceService),
	}, rateLimiter, config.Server.AllowedOrigins, log)

	return &Dependencies{
		Config:        config,
		DB:            db,
		Router:        router,
		BillingClient: billingClient,
		AuthService:   authService,
		SubService:    subscriptionService,
		Logger:        log,
	}, nil
}

func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

func splitAddr(addr string) (host, port string) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i], addr[i+1:]
		}
	}
	return addr, "6379"
}
