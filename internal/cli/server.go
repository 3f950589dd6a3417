package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"stagequiz-service/internal/app"
	"stagequiz-service/internal/config"
	"stagequiz-service/internal/domain"
	"stagequiz-service/internal/infra/memory"
	pgstore "stagequiz-service/internal/infra/postgres"
	redisinfra "stagequiz-service/internal/infra/redis"
	transport "stagequiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz presentation server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.DocumentLoader = memory.NewStaticDocumentLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizStore(pool)
	}

	quizTTL := config.TTLDuration(cfg.Document.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewDocumentRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewDocumentRepository(loader, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}
	service := app.NewSessionService(store, quizRepo)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	if cfg.Media.Dir != "" {
		mux.Handle(domain.MediaBasePath,
			http.StripPrefix(domain.MediaBasePath, http.FileServer(http.Dir(cfg.Media.Dir))))
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting stagequiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal demo document; swap the loader for the
// Postgres-backed one in production.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:   "quiz-1",
			Name: "Capitals warm-up",
			Pages: []domain.Page{
				{
					PageType: domain.PageQuiz,
					Elements: map[string]domain.ElementRecord{
						"title": {
							Type: domain.ElementRichText,
							Properties: domain.Properties{
								Text: &domain.TextProperties{Content: "Round one"},
							},
							LayerOrder: 1,
							Appearance: domain.AppearanceConfig{Type: domain.AppearOnLoad, Order: 1},
						},
						"q1": {
							Type:       domain.ElementRichText,
							LayerOrder: 2,
							Appearance: domain.AppearanceConfig{Type: domain.AppearControl, Order: 2},
							IsQuestion: true,
							Question: &domain.QuestionConfig{
								Type:          domain.QuestionRadio,
								Title:         "Capital of France?",
								CorrectAnswer: "Paris",
								Options:       []string{"Paris", "London", "Berlin"},
							},
						},
					},
					Views: map[domain.ViewName]domain.ViewConfig{
						domain.ViewDisplay: {
							LocalElements: map[string]domain.LocalElementConfig{
								"title": {Config: domain.Position{X: 200, Y: 80, Width: 1520, Height: 120}},
								"q1":    {Config: domain.Position{X: 200, Y: 300, Width: 1000, Height: 200}},
							},
						},
						domain.ViewParticipant: {
							LocalElements: map[string]domain.LocalElementConfig{
								"q1": {Config: domain.Position{X: 40, Y: 120}},
							},
						},
					},
				},
				{PageType: domain.PageResult},
			},
		},
	}
}
