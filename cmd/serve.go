package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geo-cli/internal/crawl"
	"github.com/sells-group/geo-cli/internal/metrics"
	"github.com/sells-group/geo-cli/internal/model"
	"github.com/sells-group/geo-cli/internal/store"
)

var servePort int

// runner executes one analysis. *pipeline.Pipeline satisfies it.
type runner interface {
	Run(ctx context.Context, id string) (*model.RunResult, error)
}

// publisher hands a start request to the worker queue.
type publisher interface {
	Publish(ctx context.Context, analysisID string) error
}

// apiServer serves the analysis HTTP API. Started analyses run on bg, not
// on the request context, so they outlive the request.
type apiServer struct {
	store  store.Store
	runner runner
	pub    publisher // nil runs analyses in-process
	bg     context.Context
	wg     sync.WaitGroup
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		api := &apiServer{store: env.Store, runner: env.Pipeline, bg: ctx}
		if pub, err := initPublisher(ctx); err != nil {
			return err
		} else if pub != nil {
			api.pub = pub
			zap.L().Info("start requests go to the worker queue", zap.String("queue_url", cfg.Queue.URL))
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.routes(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		// In-process runs observe the cancelled context and record their
		// failure before exiting.
		api.wg.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func (s *apiServer) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	origins := allowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/analyses", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Post("/{id}/start", s.handleStart)
	})
	return r
}

type createRequest struct {
	URL       string `json:"url"`
	BrandName string `json:"brand_name"`
	UserID    string `json:"user_id"`
	Start     bool   `json:"start"`
}

func (s *apiServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := crawl.NormalizeURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, "a valid url is required")
		return
	}

	a, err := s.store.CreateAnalysis(r.Context(), store.NewAnalysis{UserID: req.UserID, URL: req.URL, BrandName: req.BrandName})
	if err != nil {
		zap.L().Error("create analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not create analysis")
		return
	}

	if req.Start {
		if err := s.launch(r.Context(), a.ID); err != nil {
			zap.L().Error("start analysis failed", zap.String("analysis_id", a.ID), zap.Error(err))
			writeError(w, http.StatusBadGateway, "analysis created but could not be started")
			return
		}
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *apiServer) handleStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a, err := s.store.GetAnalysis(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		zap.L().Error("load analysis failed", zap.String("analysis_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load analysis")
		return
	}
	if !a.Status.IsStartable() {
		writeError(w, http.StatusConflict, fmt.Sprintf("analysis is %s", a.Status))
		return
	}

	if err := s.launch(r.Context(), id); err != nil {
		zap.L().Error("start analysis failed", zap.String("analysis_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "could not start analysis")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":      "accepted",
		"analysis_id": id,
	})
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rep, err := store.Report(r.Context(), s.store, id, r.URL.Query().Get("responses") == "true")
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	if err != nil {
		zap.L().Error("load report failed", zap.String("analysis_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load analysis")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// launch enqueues the analysis when a queue is configured and otherwise
// runs it in the background.
func (s *apiServer) launch(ctx context.Context, id string) error {
	if s.pub != nil {
		return s.pub.Publish(ctx, id)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := s.runner.Run(s.bg, id)
		if err != nil {
			zap.L().Error("analysis failed", zap.String("analysis_id", id), zap.Error(err))
			return
		}
		zap.L().Info("analysis complete",
			zap.String("analysis_id", id),
			zap.Int("score", result.Score),
		)
	}()
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
