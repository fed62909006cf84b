package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	"github.com/opsdeck/console/internal/audit"
	"github.com/opsdeck/console/internal/auth"
	"github.com/opsdeck/console/internal/companies"
	"github.com/opsdeck/console/internal/config"
	"github.com/opsdeck/console/internal/handlers/api"
	"github.com/opsdeck/console/internal/mail"
	"github.com/opsdeck/console/internal/middlewares"
	"github.com/opsdeck/console/internal/middlewares/authguard"
	"github.com/opsdeck/console/internal/notifications"
	"github.com/opsdeck/console/internal/policy"
	"github.com/opsdeck/console/internal/store"
	"github.com/opsdeck/console/internal/users"
	"github.com/opsdeck/console/model"
	"github.com/opsdeck/console/params"
	"github.com/urfave/cli/v2"
	"gopkg.in/gomail.v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "console - multi-tenant SaaS administration console"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Printf("console %s (%s)\n", gitCommit, gitDate)
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if dbConfig.ReplicaDsn != "" {
		err = db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: []gorm.Dialector{mysql.Open(dbConfig.ReplicaDsn)},
		}))
		if err != nil {
			slog.Error("Failed to register read replica", "error", err)
			os.Exit(1)
		}
	}

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err == nil {
		if dbConfig.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
		}
		if dbConfig.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
		}
		if dbConfig.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
		}
	}
	return db
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	if mailCfg.Backend == "" {
		slog.Warn("No mail backend configured, invitation emails are disabled")
		return nil
	}
	if mailCfg.Backend == "smtp" {
		smtpCfg := mailCfg.SMTP
		dialer := gomail.NewDialer(smtpCfg.Host, smtpCfg.Port, smtpCfg.Username, smtpCfg.Password)
		return mail.NewSMTPMailSender(dialer, smtpCfg.From)
	}
	slog.Error("Unsupported mail sender backend", "backend", mailCfg.Backend)
	os.Exit(1)
	return nil
}

func setupAPIRoutes(
	router fiber.Router,
	cfg *config.Config,
	limiterStorage fiber.Storage,
	authService *auth.AuthService,
	companyService *companies.CompanyService,
	userService *users.UserService,
	notificationService *notifications.NotificationService,
	auditLogger *audit.Logger,
) {
	// handlers
	var (
		authHandler         = api.NewAuthHandler(authService, cfg.Session.CookieName, cfg.Session.CookieSecure, cfg.Session.CookieHttpOnly)
		companyHandler      = api.NewCompanyHandler(companyService)
		userHandler         = api.NewUserHandler(userService, companyService, authService)
		sessionHandler      = api.NewSessionHandler(authService)
		notificationHandler = api.NewNotificationHandler(notificationService)
		auditHandler        = api.NewAuditHandler(auditLogger)
	)

	loginLimiter := limiter.New(limiter.Config{
		Max:        params.LoginRateLimitMax,
		Expiration: params.LoginRateLimitWindow,
		Storage:    limiterStorage,
	})

	root := router.Group("/api")
	root.Post("/auth/login", loginLimiter, authHandler.PostLogin)
	root.Post("/invitations/accept", userHandler.PostAcceptInvitation)

	root.Use(authguard.New(authguard.Config{
		Authorizer: authService,
		CookieName: cfg.Session.CookieName,
	}))
	root.Post("/auth/logout", authHandler.PostLogout)
	root.Post("/auth/change-password", authHandler.PostChangePassword)
	root.Get("/auth/me", authHandler.GetMe)
	root.Get("/notifications", notificationHandler.GetNotifications)
	root.Put("/notifications/:id/read", notificationHandler.PutNotificationRead)
	root.Delete("/notifications/:id", notificationHandler.DeleteNotification)

	admin := root.Group("/admin", authguard.RequireRole(model.RoleSuperAdmin))
	admin.Get("/companies", companyHandler.GetCompanies)
	admin.Post("/companies", companyHandler.PostCompany)
	admin.Get("/companies/:id", companyHandler.GetCompany)
	admin.Patch("/companies/:id", companyHandler.PatchCompany)
	admin.Put("/companies/:id/status", companyHandler.PutCompanyStatus)
	admin.Get("/companies/:id/security-config", companyHandler.GetSecurityConfig)
	admin.Put("/companies/:id/security-config", companyHandler.PutSecurityConfig)
	admin.Get("/companies/:id/users", userHandler.GetCompanyUsers)
	admin.Post("/companies/:id/users", userHandler.PostCompanyUser)
	admin.Get("/companies/:id/invitations", userHandler.GetInvitations)
	admin.Post("/companies/:id/invitations", userHandler.PostInvitation)
	admin.Put("/users/:id/status", userHandler.PutUserStatus)
	admin.Post("/users/:id/reset-lockout", userHandler.PostResetLockout)
	admin.Post("/sessions/invalidate", sessionHandler.PostInvalidateSessions)
	admin.Post("/notifications", notificationHandler.PostNotification)
	admin.Get("/audit", auditHandler.GetAuditLog)
}

func startSessionSweeper(ctx context.Context, authService *auth.AuthService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := authService.PurgeExpiredSessions(ctx)
			if err != nil {
				slog.Error("Failed to purge expired sessions", "error", err)
				continue
			}
			if purged > 0 {
				slog.Debug("Purged expired sessions", "count", purged)
			}
		}
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(cfg.MySQL)
	mailSender := mustInitMailSender(cfg.Mail)

	var (
		limiterStorage fiber.Storage
		cacheStorage   store.Storage
		redisStorage   *redis.Storage
	)
	if cfg.Redis.URL != "" {
		redisStorage = mustInitRedisStorage(cfg.Redis)
		limiterStorage = redisStorage
		cacheStorage = store.NewRedisStorage(redisStorage.Conn())
	} else {
		slog.Warn("No redis configured, using in-process storage")
		limiterStorage = memory.New()
	}

	// repositories
	var (
		userRepo         = users.NewUserRepository(db)
		invitationRepo   = users.NewInvitationRepository(db)
		companyRepo      = companies.NewCompanyRepository(db)
		configRepo       = companies.NewSecurityConfigRepository(db)
		historyRepo      = policy.NewPasswordHistoryRepository(db)
		sessionRepo      = auth.NewSessionRepository(db)
		auditRepo        = audit.NewAuditLogRepository(db)
		notificationRepo = notifications.NewNotificationRepository(db)
	)

	// services
	var (
		auditLogger         = audit.NewLogger(auditRepo)
		companyService      = companies.NewCompanyService(db, companyRepo, configRepo, auditLogger, cacheStorage)
		userService         = users.NewUserService(db, userRepo, invitationRepo, auditLogger, mailSender, cfg.BaseURL, cfg.SiteName)
		policyEngine        = policy.NewEngine(db, userRepo, historyRepo, companyService, auditLogger)
		tokenIssuer         = auth.NewTokenIssuer([]byte(cfg.TokenSecret))
		authService         = auth.NewAuthService(db, tokenIssuer, userRepo, sessionRepo, companyService, policyEngine, auditLogger, cfg.Session.MaxAge)
		notificationService = notifications.NewNotificationService(notificationRepo, userRepo)
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	setupAPIRoutes(router, cfg, limiterStorage, authService, companyService, userService, notificationService, auditLogger)

	serverCtx, term := context.WithCancel(ctx.Context)
	defer term()
	go startSessionSweeper(serverCtx, authService)

	if redisStorage != nil {
		done := make(chan struct{})
		go startHealthCheckServer(serverCtx, done, redisStorage.Conn(), db)
		defer func() {
			term()
			<-done
		}()
	}
	return router.Listen(cfg.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
