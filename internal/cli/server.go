package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/maluki2001/LearnKick2-sub002/internal/app"
	"github.com/maluki2001/LearnKick2-sub002/internal/config"
	"github.com/maluki2001/LearnKick2-sub002/internal/domain"
	"github.com/maluki2001/LearnKick2-sub002/internal/game"
	"github.com/maluki2001/LearnKick2-sub002/internal/infra/memory"
	pgstore "github.com/maluki2001/LearnKick2-sub002/internal/infra/postgres"
	redisstore "github.com/maluki2001/LearnKick2-sub002/internal/infra/redis"
	"github.com/maluki2001/LearnKick2-sub002/internal/matchmaking"
	"github.com/maluki2001/LearnKick2-sub002/internal/rating"
	transport "github.com/maluki2001/LearnKick2-sub002/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the arena server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger() *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: time.Kitchen,
	}))
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger()
	slog.SetDefault(log)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
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

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pgstore.NewQuestionLoader(pool)
	}

	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisstore.NewQuestionSource(redisClient, loader, questionTTL)
	} else {
		questions = memory.NewQuestionSource(loader, questionTTL)
	}

	var ratings app.RatingStore
	switch {
	case pool != nil:
		ratings = pgstore.NewRatingStore(pool)
	case redisClient != nil:
		ratings = redisstore.NewRatingStore(redisClient)
	default:
		ratings = memory.NewRatingStore()
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithPumpInterval(config.TTLDuration(cfg.Matchmaking.PumpInterval, time.Second)),
	}
	if cfg.Questions.PerMatch > 0 {
		opts = append(opts, app.WithQuestionCount(cfg.Questions.PerMatch))
	}

	service := app.NewService(
		matchmaking.NewQueue(matchmaking.DefaultConfig(), matchmaking.WithLogger(log)),
		game.NewRegistry(),
		questions,
		ratings,
		rating.NewLedger(rating.DefaultConfig()),
		opts...,
	)
	wsHandler := transport.NewWSHandler(service, log)
	service.SetNotifier(wsHandler)
	if err := service.Start(); err != nil {
		return err
	}
	defer service.Stop()

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, wsHandler),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting arena service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions is the built-in bank used when no Postgres is configured;
// enough material for local duels across the lower grades.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "m1", Kind: domain.MultipleChoice, Prompt: "What is 2 + 2?", Choices: []string{"3", "4", "5", "6"}, CorrectIndex: 1, Grade: 1, Difficulty: 1},
		{ID: "m2", Kind: domain.MultipleChoice, Prompt: "What is 5 + 3?", Choices: []string{"7", "8", "9", "10"}, CorrectIndex: 1, Grade: 1, Difficulty: 1},
		{ID: "m3", Kind: domain.TrueFalse, Prompt: "10 is bigger than 7.", CorrectBool: true, Grade: 1, Difficulty: 1},
		{ID: "m4", Kind: domain.NumberInput, Prompt: "What is 6 + 6?", CorrectNumber: 12, Grade: 1, Difficulty: 2},
		{ID: "m5", Kind: domain.MultipleChoice, Prompt: "What is 7 x 3?", Choices: []string{"18", "20", "21", "24"}, CorrectIndex: 2, Grade: 2, Difficulty: 2},
		{ID: "m6", Kind: domain.TrueFalse, Prompt: "A square has five corners.", CorrectBool: false, Grade: 2, Difficulty: 1},
		{ID: "m7", Kind: domain.NumberInput, Prompt: "What is 45 / 9?", CorrectNumber: 5, Grade: 2, Difficulty: 2},
		{ID: "m8", Kind: domain.MultipleChoice, Prompt: "What is 12 x 12?", Choices: []string{"124", "134", "144", "154"}, CorrectIndex: 2, Grade: 3, Difficulty: 3},
		{ID: "m9", Kind: domain.NumberInput, Prompt: "What is 17 + 28?", CorrectNumber: 45, Grade: 3, Difficulty: 3},
		{ID: "m10", Kind: domain.TrueFalse, Prompt: "100 divided by 4 is 25.", CorrectBool: true, Grade: 3, Difficulty: 2},
	}
}
