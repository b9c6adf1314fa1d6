package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Stephen55Dulaney/Daria-sub000/internal/handler/characters"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/handler/guide"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/handler/research"
	sessionhandler "github.com/Stephen55Dulaney/Daria-sub000/internal/handler/session"
	speechhandler "github.com/Stephen55Dulaney/Daria-sub000/internal/handler/speech"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/handler/ws"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/live"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/middleware"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/model/character"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/semantic"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/analysis"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/service/interview"
	speechsvc "github.com/Stephen55Dulaney/Daria-sub000/internal/service/speech"
	"github.com/Stephen55Dulaney/Daria-sub000/internal/store"
)

// Deps carries everything the HTTP surface needs. Engine, Analysis, and
// Pipeline may be nil when their subsystem is disabled; the affected routes
// answer 503 or degrade.
type Deps struct {
	Store      *store.Store
	Characters *character.Registry
	Engine     *interview.Engine
	Analysis   *analysis.Service
	Pipeline   *semantic.Pipeline
	Speech     *speechsvc.Client
	Bus        *live.Bus
	Hub        *live.Hub
	AIEnabled  bool
	Embeddings EmbeddingChecker
	Log        *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	guideHandler := guide.New(d.Store, d.Log)
	sessionHandler := sessionhandler.New(d.Store, d.Engine, d.Analysis, d.Pipeline, d.Log)
	characterHandler := characters.New(d.Characters, d.Log)
	wsHandler := ws.New(d.Store, d.Bus, d.Hub, d.Log)

	// Legacy creation aliases predating the /api prefix.
	r.Post("/discussion_guide/create", guideHandler.HandleCreate)
	r.Post("/interview/create", sessionHandler.HandleCreate)

	r.Route("/api", func(api chi.Router) {
		guideHandler.RegisterRoutes(api)
		sessionHandler.RegisterRoutes(api)
		characterHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)

		if d.Analysis != nil {
			research.New(d.Analysis, d.Pipeline, d.Log).RegisterRoutes(api)
		}
		if d.Speech != nil {
			speechhandler.New(d.Speech, d.Log).RegisterRoutes(api)
		}

		api.Get("/health", healthHandler(d))
	})

	return r
}
