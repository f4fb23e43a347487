package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-auth-service/internal/audit"
	auditrepo "crm-auth-service/internal/audit/repository"
	"crm-auth-service/internal/auth"
	authhandler "crm-auth-service/internal/auth/handler"
	"crm-auth-service/internal/config"
	"crm-auth-service/internal/db"
	"crm-auth-service/internal/directory"
	"crm-auth-service/internal/otp"
	"crm-auth-service/internal/security"
	"crm-auth-service/internal/server"
	"crm-auth-service/internal/session"
	"crm-auth-service/internal/sms"
	telemetryotel "crm-auth-service/internal/telemetry/otel"
	userrepo "crm-auth-service/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "crm-auth-service", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	auditLog := audit.NewLogger(auditrepo.NewPostgresRepository(conn), server.ClientIP)

	hasher := security.NewHasher(cfg.BcryptCost)
	tokens := security.NewSessionTokenProvider([]byte(cfg.SessionSecret), "crm-auth-service", cfg.SessionLifetime())

	var dev *otp.DevStore
	var sender otp.Sender
	if cfg.OTPReturnToClient {
		dev = otp.NewDevStore()
		log.Println("dev OTP mode enabled: codes are retrievable via GET /dev/otp")
	} else if cfg.AuthMode == config.AuthModeOTP {
		sender = sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	}
	issuer := otp.NewIssuer(otp.NewMemoryStore(), sender, cfg.OTPLifetime(), cfg.OTPMaxAttempts, dev)

	// Pending logins get twice the code window so a resent code stays usable.
	sessions := session.NewManager(cfg.SessionLifetime(), 2*cfg.OTPLifetime())

	localVerifier := auth.NewLocalVerifier(users, hasher)
	var directoryVerifier auth.Verifier
	if cfg.AuthMode == config.AuthModeDirectory {
		client := directory.NewRESTClient(cfg.DirectoryURL, cfg.DirectoryCallTimeout())
		directoryVerifier = auth.NewDirectoryVerifier(client, users)
	}

	events := telemetryotel.NewEventEmitter(providers.LoggerProvider)
	svc := auth.NewService(auth.Mode(cfg.AuthMode), users, localVerifier, directoryVerifier, issuer, sessions, dev, auditLog, events)

	h := authhandler.NewHTTPHandler(svc, tokens, cfg.Env == "production")
	tracer := providers.TracerProvider.Tracer("crm-auth-service/server")
	meter := providers.MeterProvider.Meter("crm-auth-service/server")
	router := server.NewRouter(h, tracer, meter, dev != nil)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s (auth mode: %s)", cfg.HTTPAddr, cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	// Periodic sweep reclaims memory from expired sessions; expiry itself is
	// checked lazily on access.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				sessions.Sweep(sweepCtx)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
