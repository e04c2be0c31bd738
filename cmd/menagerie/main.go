package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"menagerie/internal/api"
	"menagerie/pkg/broadcast"
	"menagerie/pkg/config"
	"menagerie/pkg/db"
	"menagerie/pkg/dispatch"
	"menagerie/pkg/llm/gemini"
	"menagerie/pkg/llm/prompts"
	"menagerie/pkg/logging"
	"menagerie/pkg/model"
	"menagerie/pkg/probe"
	"menagerie/pkg/prompt"
	"menagerie/pkg/responder"
	"menagerie/pkg/scheduler"
	"menagerie/pkg/store"
	"menagerie/pkg/tracker"
	"menagerie/pkg/version"
)

// defaultUserID is the user record seeded at startup for single-user installs.
const defaultUserID = "local"

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault("configs/menagerie.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/menagerie.yaml")
		return
	}

	if err := run(context.Background(), "configs/menagerie.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// .env is optional; config falls back to environment variables for keys
	_ = godotenv.Load()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("Menagerie Started", "version", version.Version)

	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	if err := seedRoster(ctx, st, "configs/characters.yaml"); err != nil {
		return err
	}

	provider := config.NewProvider(appCfg, st)

	llmClient, err := gemini.NewClient(appCfg.LLM, "logs/llm.log")
	if err != nil {
		return fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	defer llmClient.Close()

	usage := tracker.New()
	llmClient.SetUsageTracker(usage)

	// The LLM probe is non-critical so the app can come up before a key is
	// configured; generation fails until then.
	probes := []probe.Probe{
		{Name: "Database", Check: dbConn.PingContext, Critical: true},
		{Name: "LLM Backend", Check: llmClient.HealthCheck},
	}
	if err := probe.Run(ctx, probes); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	promptMgr, err := prompts.NewManager("configs/prompts")
	if err != nil {
		return fmt.Errorf("failed to initialize prompt manager: %w", err)
	}
	asm := prompt.NewAssembler(promptMgr)

	queue := dispatch.NewQueue(provider)
	hub := broadcast.NewHub()
	defer hub.Close()

	orch := responder.NewOrchestrator(provider, st, queue, llmClient, asm, hub)

	imagesDir := filepath.Join("data", "images")
	if err := os.MkdirAll(imagesDir, 0o755); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}
	sched := scheduler.New(provider, st, queue, llmClient, asm, hub, imagesDir)
	if appCfg.Scheduler.AutoStart {
		sched.Start()
	}
	defer sched.Stop()

	return runServer(ctx, appCfg, st, orch, sched, hub, usage, imagesDir)
}

// seedRoster inserts characters from the roster file and the default user.
// Existing characters (matched by handle) are left untouched so edits made
// through the API survive restarts.
func seedRoster(ctx context.Context, st store.Store, path string) error {
	roster, err := config.LoadCharacters(path)
	if err != nil {
		return fmt.Errorf("failed to load characters config: %w", err)
	}

	for _, seed := range roster.Characters {
		existing, err := st.GetCharacterByHandle(ctx, seed.Handle)
		if err != nil {
			return fmt.Errorf("failed to check character %q: %w", seed.Handle, err)
		}
		if existing != nil {
			continue
		}
		ch := &model.Character{
			ID:        uuid.NewString(),
			Name:      seed.Name,
			Handle:    seed.Handle,
			Persona:   seed.Persona,
			AvatarURL: seed.AvatarURL,
			PostStyle: seed.PostStyle,
			CreatedAt: time.Now().UTC(),
		}
		if err := st.SaveCharacter(ctx, ch); err != nil {
			return fmt.Errorf("failed to seed character %q: %w", seed.Handle, err)
		}
		slog.Info("Seeded character", "handle", seed.Handle, "name", seed.Name)
	}

	user, err := st.GetUser(ctx, defaultUserID)
	if err != nil {
		return fmt.Errorf("failed to check default user: %w", err)
	}
	if user == nil {
		u := &model.User{ID: defaultUserID, Name: "You", CreatedAt: time.Now().UTC()}
		if err := st.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("failed to seed default user: %w", err)
		}
	}
	return nil
}

func runServer(ctx context.Context, cfg *config.Config, st store.Store, orch *responder.Orchestrator, sched *scheduler.Scheduler, hub *broadcast.Hub, usage *tracker.Tracker, imagesDir string) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewCharactersHandler(st),
		api.NewConversationsHandler(st, orch),
		api.NewMessagesHandler(st, orch),
		api.NewSchedulerHandler(sched),
		api.NewFeedHandler(st),
		api.NewStatsHandler(usage),
		api.NewImagesHandler(imagesDir),
		hub,
		shutdownFunc,
	)

	srv.Handler = loggingMiddleware(srv.Handler)
	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
