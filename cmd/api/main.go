package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stockroom/internal/alert"
	"stockroom/internal/auth"
	"stockroom/internal/company"
	"stockroom/internal/config"
	"stockroom/internal/db"
	"stockroom/internal/httpserver"
	"stockroom/internal/identity"
	"stockroom/internal/inventory"
	"stockroom/internal/logger"
	"stockroom/internal/metrics"
	"stockroom/internal/models"
	"stockroom/internal/notify"
	"stockroom/internal/profile"
	"stockroom/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	lg := logger.New(cfg.Log.Level)
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		lg.Fatalw("db connect failed", "driver", cfg.Database.Driver, "error", err)
	}
	if err := db.Migrate(gdb); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var bus identity.Bus = identity.NewLocalBus()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		rb := identity.NewRedisBus(rdb, identity.DefaultChannel, lg)
		go func() {
			if err := rb.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Errorw("session event subscriber stopped", "error", err)
			}
		}()
		bus = rb
		lg.Infow("session events via redis", "addr", cfg.Redis.Addr)
	}

	idp := identity.NewService(identity.NewGormStore(gdb), auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL), bus, lg)
	profiles := profile.NewGormStore(gdb)
	companies := company.NewService(gdb)
	outbox := alert.NewOutbox(gdb)
	items := inventory.NewService(gdb, outbox, lg)

	emitter := notify.NewEmitter(notify.Options{
		BaseURL:   cfg.Mail.BaseURL,
		From:      cfg.Mail.From,
		APIKeyEnv: cfg.Mail.APIKeyEnv,
		Timeout:   cfg.Mail.Timeout,
	}, m, lg)
	var sender notify.Sender = emitter
	if cfg.Mail.FunctionURL != "" {
		sender = notify.NewFunctionClient(cfg.Mail.FunctionURL, cfg.Mail.FunctionToken, cfg.Mail.Timeout)
		lg.Infow("alerts delivered through mail function", "url", cfg.Mail.FunctionURL)
	}

	eval := alert.NewEvaluator(alert.NewGormLookup(gdb), sender, m, lg)
	worker := alert.NewWorker(outbox, eval, alert.WorkerConfig{
		PollInterval: cfg.Alerts.PollInterval,
		BatchSize:    cfg.Alerts.BatchSize,
		MaxAttempts:  cfg.Alerts.MaxAttempts,
	}, m, lg)
	go worker.Run(ctx)

	seedDefaultAdmin(ctx, cfg, idp, profiles, companies, lg)

	router := httpserver.NewRouter(httpserver.Deps{
		DB:         gdb,
		Identity:   idp,
		Profiles:   profiles,
		Companies:  companies,
		Inventory:  items,
		Outbox:     outbox,
		Mail:       emitter,
		MailToken:  cfg.Mail.FunctionToken,
		CORSOrigin: cfg.Mail.CORSOrigin,
		Metrics:    m,
		Log:        lg,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			lg.Errorw("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Errorw("shutdown", "error", err)
	}
	lg.Infow("stopped")
}

// seedDefaultAdmin creates the configured admin, their company and profile once.
func seedDefaultAdmin(ctx context.Context, cfg *config.Config, idp *identity.Service, profiles profile.Store, companies *company.Service, lg *zap.SugaredLogger) {
	email, password := cfg.Seed.AdminEmail, cfg.Seed.AdminPassword
	if email == "" || password == "" {
		return
	}
	b := session.NewBridge(idp.Client(""), profiles, nil, lg)
	b.Start(ctx)
	defer b.Close()

	if _, err := b.SignIn(ctx, email, password); err == nil {
		_ = b.SignOut(ctx)
		return
	}

	co, err := companies.Create(ctx, cfg.Seed.CompanyName, email)
	if err != nil {
		lg.Errorw("seed company failed", "error", err)
		return
	}
	fields := profile.Fields{FirstName: "Admin", Role: models.RoleAdmin, CompanyID: &co.ID}
	if _, err := b.SignUp(ctx, email, password, fields); err != nil {
		if errors.Is(err, identity.ErrUserExists) {
			lg.Warnw("seed admin exists with a different password", "email", email)
			return
		}
		lg.Errorw("seed admin failed", "email", email, "error", err)
		return
	}
	_ = b.SignOut(ctx)
	lg.Infow("seeded default admin", "email", email, "company_id", co.ID)
}
