package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"authgate.gg/internal/auth"
	"authgate.gg/internal/config"
	"authgate.gg/internal/messages"
	"authgate.gg/internal/onebot"
	"authgate.gg/internal/store"
	"authgate.gg/internal/web"
)

func main() {
	var (
		configPath   = flag.String("config", "./configs/authgate.yaml", "config path")
		messagesPath = flag.String("messages", "./configs/messages.yaml", "message catalog path")
		dataDir      = flag.String("data", "./data", "runtime data directory")
		addr         = flag.String("addr", "", "onebot listen address (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("config not found (%s); using defaults", *configPath)
		} else {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *addr != "" {
		cfg.OneBot.Addr = *addr
	}
	if len(cfg.OneBot.AllowedGroups) == 0 {
		logger.Printf("onebot: allowed_groups empty; processing messages from every group")
	}

	cat, err := messages.Load(*messagesPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("message catalog not found (%s); using defaults", *messagesPath)
		} else {
			logger.Fatalf("load messages: %v", err)
		}
	}

	st, err := store.Open(filepath.Join(*dataDir, "authgate.db"))
	if err != nil {
		logger.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx, cancel := signalContext()
	defer cancel()

	authority := auth.NewAuthority(256)
	svc := auth.NewService(authority, st, cfg, logEffects{logger}, logger)

	go func() {
		if err := authority.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("authority stopped: %v", err)
		}
	}()

	corr := onebot.NewCorrelator()
	handler := onebot.NewHandler(svc, cat, logger)
	roster := onebot.NewRoster(st, cfg, logger)
	obs := onebot.NewServer(cfg, corr, handler, roster, logger)
	go obs.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.OneBot.Path, obs.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(obs, authority, svc))

	if cfg.Server.Enabled {
		apiMux := http.NewServeMux()
		web.NewServer(svc, cfg.Server, logger).Register(apiMux)
		apiSrv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           apiMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = apiSrv.Shutdown(ctx2)
		}()
		go func() {
			logger.Printf("api listening on %s", cfg.Server.Addr)
			if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("api ListenAndServe: %v", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.OneBot.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("onebot listening on %s path %s", cfg.OneBot.Addr, cfg.OneBot.Path)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func metricsHandler(obs *onebot.Server, authority *auth.Authority, svc *auth.Service) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		s := obs.Stats()
		connected := 0
		if s.Connected {
			connected = 1
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP authgate_bot_connected Whether a OneBot client is attached.\n")
		fmt.Fprintf(rw, "# TYPE authgate_bot_connected gauge\n")
		fmt.Fprintf(rw, "authgate_bot_connected %d\n", connected)

		fmt.Fprintf(rw, "# HELP authgate_pending_actions In-flight actions awaiting replies.\n")
		fmt.Fprintf(rw, "# TYPE authgate_pending_actions gauge\n")
		fmt.Fprintf(rw, "authgate_pending_actions %d\n", s.PendingActions)

		fmt.Fprintf(rw, "# HELP authgate_commands_total Chat commands handled.\n")
		fmt.Fprintf(rw, "# TYPE authgate_commands_total counter\n")
		fmt.Fprintf(rw, "authgate_commands_total %d\n", s.CommandsHandled)

		fmt.Fprintf(rw, "# HELP authgate_commands_dropped_total Commands dropped on a full work queue.\n")
		fmt.Fprintf(rw, "# TYPE authgate_commands_dropped_total counter\n")
		fmt.Fprintf(rw, "authgate_commands_dropped_total %d\n", s.CommandsDropped)

		fmt.Fprintf(rw, "# HELP authgate_unmatched_replies_total Action replies with no pending echo.\n")
		fmt.Fprintf(rw, "# TYPE authgate_unmatched_replies_total counter\n")
		fmt.Fprintf(rw, "authgate_unmatched_replies_total %d\n", s.UnmatchedReplies)

		fmt.Fprintf(rw, "# HELP authgate_authority_queue_depth Authority backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE authgate_authority_queue_depth gauge\n")
		fmt.Fprintf(rw, "authgate_authority_queue_depth %d\n", authority.Depth())

		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if guests, err := svc.GuestCount(ctx); err == nil {
			fmt.Fprintf(rw, "# HELP authgate_guests Players currently in guest mode.\n")
			fmt.Fprintf(rw, "# TYPE authgate_guests gauge\n")
			fmt.Fprintf(rw, "authgate_guests %d\n", guests)
		}
	}
}

// logEffects is the standalone server's presentation: guest transitions go
// to the log so operators can trace them without a game host attached.
type logEffects struct{ log *log.Logger }

func (e logEffects) ApplyGuest(player uuid.UUID, name, code string) {
	e.log.Printf("[guest] %s (%s) restricted, code %s", name, player, code)
}
func (e logEffects) ClearGuest(player uuid.UUID) {
	e.log.Printf("[guest] %s cleared", player)
}
func (e logEffects) Welcome(player uuid.UUID, name string) {
	e.log.Printf("[guest] %s (%s) joined bound", name, player)
}
func (e logEffects) Prompt(player uuid.UUID, code string) {
	e.log.Printf("[guest] %s vetoed, code %s", player, code)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
