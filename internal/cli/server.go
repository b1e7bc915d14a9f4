package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vityaded/Kahoot-clone/internal/app"
	"github.com/vityaded/Kahoot-clone/internal/config"
	"github.com/vityaded/Kahoot-clone/internal/evaluate"
	"github.com/vityaded/Kahoot-clone/internal/infra/memory"
	pgstore "github.com/vityaded/Kahoot-clone/internal/infra/postgres"
	redisstore "github.com/vityaded/Kahoot-clone/internal/infra/redis"
	"github.com/vityaded/Kahoot-clone/internal/logger"
	transport "github.com/vityaded/Kahoot-clone/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		log.Info().Msg("migrations applied")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var templates app.TemplateStore = memory.NewTemplateStore()
	if pool != nil {
		templates = pgstore.NewTemplateStore(pool)
	}
	if redisClient != nil {
		templateTTL := config.TTLDuration(cfg.Quiz.TemplateTTL, time.Hour)
		templates = redisstore.NewTemplateStore(redisClient, templates, templateTTL)
	}

	var snapshots app.SnapshotStore = memory.NewSnapshotStore()
	if redisClient != nil {
		snapshots = redisstore.NewSnapshotStore(redisClient, redisTTL)
	}

	evalOpts := []evaluate.Option{evaluate.WithLogger(log)}
	if cfg.Evaluator.SynonymURL != "" {
		evalOpts = append(evalOpts, evaluate.WithSynonyms(
			evaluate.NewCachedSynonyms(evaluate.NewHTTPSynonyms(cfg.Evaluator.SynonymURL)),
		))
	}
	if cfg.Evaluator.Judge.Endpoint != "" {
		judgeTimeout := config.TTLDuration(cfg.Evaluator.Judge.Timeout, 5*time.Second)
		judge := evaluate.NewCachedJudge(evaluate.NewChain(
			evaluate.NewChatJudge(
				cfg.Evaluator.Judge.Endpoint,
				cfg.Evaluator.Judge.Model,
				cfg.Evaluator.Judge.APIKey,
				judgeTimeout,
			),
		))
		mode := evaluate.JudgeFallback
		if cfg.Evaluator.Judge.Mode == string(evaluate.JudgePrimary) {
			mode = evaluate.JudgePrimary
		}
		confidence := cfg.Evaluator.Judge.Confidence
		if confidence <= 0 {
			confidence = 0.7
		}
		evalOpts = append(evalOpts, evaluate.WithJudge(judge, mode, confidence))
	}
	evaluator := evaluate.New(evaluate.ParseProfile(cfg.Evaluator.Strictness), evalOpts...)

	settings := app.DefaultSettings()
	settings.QuestionSeconds = config.IntOr(cfg.Quiz.QuestionSeconds, settings.QuestionSeconds)
	settings.PauseSeconds = config.IntOr(cfg.Quiz.PauseSeconds, settings.PauseSeconds)
	settings.CountdownSeconds = config.IntOr(cfg.Quiz.CountdownSeconds, settings.CountdownSeconds)
	settings.DisconnectGrace = config.TTLDuration(cfg.Quiz.DisconnectGrace, settings.DisconnectGrace)

	engine := app.NewEngine(templates, snapshots, evaluator,
		app.WithSettings(settings),
		app.WithEngineLogger(log),
	)
	if err := engine.Rehydrate(ctx); err != nil {
		log.Warn().Err(err).Msg("rehydrate failed, starting clean")
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	engine.StartJanitor(janitorCtx)

	wsHandler := transport.NewWSHandler(engine, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
