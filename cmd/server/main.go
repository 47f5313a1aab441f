package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/django/v3"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	marketplace "github.com/workisready/marketplace"
	"github.com/workisready/marketplace/config"
	"github.com/workisready/marketplace/logging"
	"github.com/workisready/marketplace/mailer"
	"github.com/workisready/marketplace/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(logging.Config{
		Env:     cfg.Log.Env,
		Level:   cfg.Log.Level,
		Service: "marketplace",
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	db, err := setupDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := marketplace.NewRepositoryManager(db)
	repo.MustValidate()

	sink := activityLogger(logger.Named("activity"))

	userEngine := marketplace.NewVerifyEngine[marketplace.ProfileData, *marketplace.User](
		marketplace.NewUserApprovalStore(repo.Users()),
		marketplace.WithEngineLogger(logger.Named("approval")),
		marketplace.WithEngineActivitySink(sink),
		marketplace.WithAutoApproveOnVerify(cfg.Auth.AutoApproveOnVerify),
	)
	providerEngine := marketplace.NewEngine[marketplace.ProviderProfile, *marketplace.Provider](
		marketplace.NewProviderApprovalStore(repo.Providers()),
		marketplace.WithEngineLogger(logger.Named("approval")),
		marketplace.WithEngineActivitySink(sink),
	)

	provider := marketplace.NewUserProvider(userTrackerAdapter{users: repo.Users()}).
		WithLogger(logger.Named("identity"))

	auther := marketplace.NewAuthenticator(provider, cfg.Auth).
		WithLogger(logger.Named("auth")).
		WithActivitySink(sink)

	gate := marketplace.NewGate(
		auther.TokenService(),
		marketplace.NewUserApprovalStore(repo.Users()),
		marketplace.WithGateLogger(logger.Named("gate")),
		marketplace.WithGateAuthScheme(cfg.Auth.AuthScheme),
	)

	smtp := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:               cfg.SMTP.Host,
		Port:               cfg.SMTP.Port,
		From:               cfg.SMTP.From,
		User:               cfg.SMTP.User,
		Pass:               cfg.SMTP.Pass,
		TLSMode:            cfg.SMTP.TLSMode,
		InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		BaseURL:            cfg.Server.BaseURL,
	})

	uploads := marketplace.NewUploadStore(cfg.Uploads.Root, logger.Named("uploads"))

	var google *marketplace.GoogleVerifier
	if cfg.Google.ClientID != "" {
		google, err = marketplace.NewGoogleVerifier(ctx, cfg.Google.ClientID,
			marketplace.WithGoogleLogger(logger.Named("google")),
		)
		if err != nil {
			return err
		}
		defer google.Close()
	} else {
		logger.Warn("GOOGLE_CLIENT_ID not set, google sign-in disabled")
	}

	app := buildApp(cfg, logger, repo, auther, gate, userEngine, providerEngine, google, smtp, uploads, sink)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		if err := app.Shutdown(); err != nil {
			logger.Error("shutdown: %v", err)
		}
	}()

	logger.Info("listening on %s", cfg.Server.Address())
	return app.Listen(cfg.Server.Address())
}

func setupDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	persistence.RegisterModel((*marketplace.User)(nil))
	persistence.RegisterModel((*marketplace.Provider)(nil))
	persistence.RegisterModel((*marketplace.Task)(nil))
	persistence.RegisterModel((*marketplace.Review)(nil))
	persistence.RegisterModel((*marketplace.SavedTask)(nil))
	persistence.RegisterModel((*marketplace.SavedProvider)(nil))
	persistence.RegisterModel((*marketplace.FeaturedProvider)(nil))

	client, err := persistence.New(cfg.Database, sqldb, sqlitedialect.New())
	if err != nil {
		return nil, err
	}

	client.SetLogger(logger.Named("persistence"))

	migrationsFS, err := fs.Sub(marketplace.GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}

	return client.DB(), nil
}

func buildApp(
	cfg *config.Config,
	logger *logging.Logger,
	repo marketplace.RepositoryManager,
	auther *marketplace.Auther,
	gate *marketplace.Gate,
	userEngine *marketplace.VerifyEngine[marketplace.ProfileData, *marketplace.User],
	providerEngine *marketplace.Engine[marketplace.ProviderProfile, *marketplace.Provider],
	google *marketplace.GoogleVerifier,
	smtp *mailer.SMTPSender,
	uploads *marketplace.UploadStore,
	sink marketplace.ActivitySink,
) *fiber.App {
	engine := django.New("./views", ".html")

	app := fiber.New(fiber.Config{
		AppName:           "workisready",
		PassLocalsToViews: true,
		Views:             engine,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Static("/uploads", cfg.Uploads.Root)

	httpLogger := logger.Named("http")

	requireAuth := middleware.RequireAuth(gate, httpLogger)
	requireAdmin := middleware.RequireAdmin(gate, httpLogger)

	api := app.Group("/api")

	authCtrl := &marketplace.AuthController{
		Logger:     httpLogger,
		Repo:       repo,
		Auther:     auther,
		Verifier:   userEngine,
		Google:     google,
		Social:     marketplace.NewSocialLoginHandler(repo, sink, httpLogger),
		Register:   marketplace.NewRegisterUserHandler(repo, userEngine, smtp, httpLogger),
		ResetInit:  marketplace.NewInitializePasswordResetHandler(repo, smtp, sink, httpLogger),
		ResetFinal: marketplace.NewFinalizePasswordResetHandler(repo, sink, httpLogger),
		Mailer:     smtp,
	}
	authCtrl.RegisterRoutes(api.Group("/auth"))

	usersCtrl := &marketplace.UsersController{
		Logger:  httpLogger,
		Repo:    repo,
		Engine:  userEngine,
		Uploads: uploads,
	}
	usersCtrl.RegisterRoutes(api.Group("/users", requireAuth))

	providersCtrl := &marketplace.ProvidersController{
		Logger:  httpLogger,
		Repo:    repo,
		Engine:  providerEngine,
		Uploads: uploads,
	}
	// Private routes go first so /check and /me are matched before the
	// public /:id wildcard.
	providersCtrl.RegisterPrivateRoutes(api.Group("/providers", requireAuth))
	providersCtrl.RegisterPublicRoutes(api.Group("/providers"))

	tasksCtrl := &marketplace.TasksController{Logger: httpLogger, Repo: repo}
	tasksCtrl.RegisterRoutes(api.Group("/tasks", requireAuth))

	reviewsCtrl := &marketplace.ReviewsController{Logger: httpLogger, Repo: repo}
	reviewsCtrl.RegisterPublicRoutes(api.Group("/reviews"))
	reviewsCtrl.RegisterPrivateRoutes(api.Group("/reviews", requireAuth))

	savedCtrl := &marketplace.SavedController{Logger: httpLogger, Repo: repo}
	savedCtrl.RegisterRoutes(api.Group("/saved", requireAuth))

	adminCtrl := &marketplace.AdminController{
		Logger:         httpLogger,
		Repo:           repo,
		UserEngine:     userEngine,
		ProviderEngine: providerEngine,
	}
	adminCtrl.RegisterRoutes(api.Group("/admin", requireAuth, requireAdmin))

	return app
}

type userTrackerAdapter struct {
	users marketplace.Users
}

func (a userTrackerAdapter) GetByIdentifier(ctx context.Context, identifier string) (*marketplace.User, error) {
	return a.users.GetByIdentifier(ctx, identifier)
}

func (a userTrackerAdapter) TrackAttemptedLogin(ctx context.Context, user *marketplace.User) error {
	return a.users.TrackAttemptedLogin(ctx, user)
}

func (a userTrackerAdapter) TrackSuccessfulLogin(ctx context.Context, user *marketplace.User) error {
	return a.users.TrackSuccessfulLogin(ctx, user)
}

// activityLogger records audit events to the process log. Swapping in a
// durable sink later only touches this constructor.
func activityLogger(logger *logging.Logger) marketplace.ActivitySink {
	return marketplace.ActivitySinkFunc(func(_ context.Context, event marketplace.ActivityEvent) error {
		logger.Info("event=%s actor=%s/%s record=%s meta=%v",
			event.EventType, event.Actor.Type, event.Actor.ID, event.RecordID, event.Metadata)
		return nil
	})
}
