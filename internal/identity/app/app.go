package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nimbus-labs/identity/internal/identity/domain"
	httpapi "github.com/nimbus-labs/identity/internal/identity/http"
	"github.com/nimbus-labs/identity/internal/identity/mail"
	"github.com/nimbus-labs/identity/internal/identity/service"
	"github.com/nimbus-labs/identity/internal/identity/store"
	"github.com/nimbus-labs/identity/internal/identity/store/drivers/sqlite"
	"github.com/nimbus-labs/identity/pkg/cryptox"
	"github.com/nimbus-labs/identity/pkg/jwtx"
	"github.com/nimbus-labs/identity/pkg/slogx"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "dev"

// Application wires the identity service together: storage, signing keys,
// services, and the HTTP server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.EdDSASigner

	accountService   *service.AccountService
	tokenService     *service.TokenService
	authorizeService *service.AuthorizeService
	rolesService     *service.RolesService
	privilegeService *service.PrivilegeService
	userAdminService *service.UserAdminService
	housekeeping     *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New builds an Application from config: opens the database, applies
// migrations, loads the signing key, seeds the system roles, and wires the
// HTTP router.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	cryptox.SetPepperPath(cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := loadOrCreateSigningKey(cfg.SigningKeyFile, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.signer = signer

	app.initServices()

	if err := app.seed(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops housekeeping, and closes the
// database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initServices() {
	verifier := jwtx.NewVerifierEdDSA(app.signer.PublicKey(), app.cfg.Issuer)

	app.tokenService = &service.TokenService{
		Signer:     app.signer,
		Verifier:   verifier,
		Store:      app.db,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
		VerifyTTL:  app.cfg.VerifyTokenTTL,
	}

	app.accountService = &service.AccountService{
		Store:  app.db,
		Tokens: app.tokenService,
		Mailer: mail.NewLogMailer(app.logger),
	}

	app.authorizeService = &service.AuthorizeService{Store: app.db}
	app.rolesService = &service.RolesService{Store: app.db}
	app.privilegeService = &service.PrivilegeService{Store: app.db}
	app.userAdminService = &service.UserAdminService{
		Store:  app.db,
		Tokens: app.tokenService,
	}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// seed provisions the system roles and, when configured, the initial admin
// account. Runs on every boot and is idempotent.
func (app *Application) seed() error {
	seeder := &service.SeedService{Store: app.db}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := seeder.Apply(slogx.WithContext(ctx, app.logger), domain.SeedData{
		AdminName:     app.cfg.SeedAdminName,
		AdminEmail:    app.cfg.SeedAdminEmail,
		AdminPassword: app.cfg.SeedAdminPassword,
	})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.tokenService.Verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.AccountService = app.accountService
	router.TokenService = app.tokenService
	router.AuthorizeService = app.authorizeService
	router.RolesService = app.rolesService
	router.PrivilegeService = app.privilegeService
	router.UserAdminService = app.userAdminService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
