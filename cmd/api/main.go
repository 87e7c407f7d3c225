package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rosterd.org/internal/audit"
	"rosterd.org/internal/auth"
	"rosterd.org/internal/directory"
	"rosterd.org/internal/httpapi"
	"rosterd.org/internal/ids"
	"rosterd.org/internal/obs"
	"rosterd.org/internal/session"
	"rosterd.org/internal/store/pg"
	"rosterd.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	addr := os.Getenv("ROSTERD_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	// Postgres when a DSN is configured, in-memory otherwise (dev mode).
	var (
		store      directory.Store
		sink       audit.Logger
		readyProbe httpapi.ReadyProbe
		pgStore    *pg.Store
	)
	apiOpts := []httpapi.Option{}
	if dsn := os.Getenv("ROSTERD_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		auditSink := pg.NewAuditSink(pgStore)
		sink = auditSink
		apiOpts = append(apiOpts, httpapi.WithLogReader(auditSink))
		readyProbe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		log.Println("ROSTERD_PG_DSN not set; using in-memory store")
		store = directory.NewInMemory()
		sink = audit.NewLog()
	}

	bus := stream.New()
	sink = audit.WithBroadcast(sink, bus)
	creds := auth.BcryptComparator{}

	svc := directory.NewService(store, sink, creds)
	authority := session.NewAuthority(store, sink, creds, session.WithTTL(sessionTTL()))

	if err := bootstrapAdmin(store, creds); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	apiOpts = append(apiOpts, httpapi.WithStream(bus))
	api := httpapi.New(readyProbe, version, svc, authority, apiOpts...)

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting rosterd-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}

func sessionTTL() time.Duration {
	raw := strings.TrimSpace(os.Getenv("ROSTERD_SESSION_TTL"))
	if raw == "" {
		return auth.DefaultTTL
	}
	ttl, err := time.ParseDuration(raw)
	if err != nil || ttl <= 0 {
		log.Printf("invalid ROSTERD_SESSION_TTL %q; using default", raw)
		return auth.DefaultTTL
	}
	return ttl
}

// bootstrapAdmin creates the admin account when the env pair is set and no
// account with that user id exists yet. Registration only provisions
// faculty and students, so the first admin has to come from here.
func bootstrapAdmin(store directory.Store, creds auth.Comparator) error {
	userID := strings.TrimSpace(os.Getenv("ROSTERD_ADMIN_USER"))
	password := os.Getenv("ROSTERD_ADMIN_PASSWORD")
	if userID == "" || password == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := store.FindByUserID(ctx, userID); err == nil {
		return nil
	} else if !errors.Is(err, directory.ErrNotFound) {
		return err
	}

	hash, err := creds.Hash(password)
	if err != nil {
		return err
	}
	acc := &directory.Account{
		ID:           ids.New(),
		Name:         "Administrator",
		UserID:       userID,
		RollNumber:   userID,
		Role:         directory.RoleAdmin,
		PasswordHash: hash,
	}
	if err := store.Create(ctx, acc); err != nil {
		return err
	}
	log.Printf("bootstrapped admin account %s", userID)
	return nil
}
