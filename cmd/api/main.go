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

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/config"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/handler"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/live"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/logger"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/character"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/session"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/semantic"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/ai"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/analysis"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/interview"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/observer"
	speechsvc "github.com/Stephen55Dulaney/Daria-sub000/internal/service/speech"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zlog := logger.New(cfg.Log.FilePath, cfg.Log.Prod)
	defer zlog.Sync()

	registry, err := character.NewRegistry(cfg.Store.PromptDir)
	if err != nil {
		zlog.Fatal("could not open character registry", zap.Error(err))
	}
	st, err := store.New(cfg.Store.DataDir, zlog)
	if err != nil {
		zlog.Fatal("could not open session store", zap.Error(err))
	}
	if err := st.RebuildGuideLinks(); err != nil {
		zlog.Warn("could not rebuild guide links", zap.Error(err))
	}

	bus := live.NewBus()
	defer bus.Close()
	hub := live.NewHub(bus, zlog)
	go hub.Run(ctx)

	deps := handler.Deps{
		Store:      st,
		Characters: registry,
		Bus:        bus,
		Hub:        hub,
		Log:        zlog,
	}

	var aiClient *ai.Client
	if cfg.AI.Enabled() {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			zlog.Warn("could not initialize chat model, continuing without AI", zap.Error(err))
		} else if aiClient, err = ai.NewClient(ctx, chatModel, zlog); err != nil {
			zlog.Warn("could not compile chat chain, continuing without AI", zap.Error(err))
			aiClient = nil
		} else {
			zlog.Info("chat model initialized", zap.String("model", cfg.AI.Model))
		}
	} else {
		zlog.Warn("chat model credentials not configured, interview features disabled")
	}
	deps.AIEnabled = aiClient != nil

	var embedder *semantic.HTTPProvider
	if cfg.Embedding.Enabled() {
		embedder = semantic.NewHTTPProvider(cfg.Embedding)
		deps.Embeddings = embedder
	}

	var pipeline *semantic.Pipeline
	var index *semantic.Index
	if cfg.Vector.Enabled() && embedder != nil && aiClient != nil {
		index, err = semantic.NewIndex(cfg.Vector.DSN)
		if err != nil {
			zlog.Warn("could not open vector index, semantic search degraded to text mode", zap.Error(err))
		} else {
			pipeline = semantic.NewPipeline(st, embedder, semantic.NewTagger(aiClient), index, zlog)
			zlog.Info("semantic pipeline initialized")
		}
	}

	if cfg.Speech.TTSEnabled() || cfg.Speech.STTEnabled() {
		deps.Speech = speechsvc.NewClient(cfg.Speech, zlog)
	}

	if aiClient != nil {
		engine := interview.NewEngine(st, registry, aiClient, bus, zlog)

		if cfg.Observer.Enabled {
			obs := observer.NewEngine(aiClient, st, bus, zlog)
			engine.SetObserver(&suggestingObserver{engine: obs})
		}

		var searcher analysis.Searcher
		var queryEmbedder analysis.Embedder
		if index != nil {
			searcher = index
			queryEmbedder = embedder
		}
		analysisSvc := analysis.New(st, aiClient, registry, queryEmbedder, searcher, zlog)
		engine.SetAnalyzer(analysisSvc)

		deps.Engine = engine
		deps.Analysis = analysisSvc
		deps.Pipeline = pipeline
	}

	router := handler.NewRouter(deps)
	startServer(ctx, cfg.Server, router, zlog)
}

// suggestingObserver refreshes the suggested-question list after each
// interviewer reply, on top of the per-message observation.
type suggestingObserver struct {
	engine *observer.Engine
}

func (o *suggestingObserver) ObserveMessage(ctx context.Context, sessionID string, msg session.Message) {
	o.engine.ObserveMessage(ctx, sessionID, msg)
	if msg.Role == session.RoleAssistant {
		o.engine.SuggestQuestions(ctx, sessionID)
	}
}

func (o *suggestingObserver) GenerateSummary(ctx context.Context, sessionID string) (map[string]interface{}, error) {
	return o.engine.GenerateSummary(ctx, sessionID)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, zlog *zap.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	zlog.Info("daria research session engine listening", zap.String("addr", serverCfg.Addr))
	if err := runServer(ctx, srv); err != nil {
		zlog.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
