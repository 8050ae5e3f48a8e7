package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"simdex/features/corpus"
	"simdex/features/detect"
	"simdex/internal/config"
	"simdex/internal/middleware"
)

// Store is everything the features need from the vector store: the
// detector's similarity index and the corpus feature's chunk store.
type Store interface {
	detect.SimilarityIndex
	corpus.Store
}

// Publisher enqueues async submissions.
type Publisher interface {
	Publish(topic string, body []byte) error
}

type App struct {
	Handler       http.Handler
	DetectService *detect.Service
	CorpusService *corpus.Service

	port int
}

func New(cfg *config.Config, store Store, publisher Publisher) (*App, error) {
	auditLogger, err := detect.NewFileCheckLogger(cfg.CheckLogPath)
	if err != nil {
		slog.Warn("failed to create check logger, falling back to stdout", "error", err)
		auditLogger = detect.NewCheckLogger(os.Stdout)
	}

	detectService := detect.NewService(store, detect.Options{
		ChunkThreshold:   cfg.ChunkThreshold,
		SummaryThreshold: cfg.SummaryThreshold,
		ChunkSize:        cfg.ChunkSize,
		MinChunkRatio:    cfg.MinChunkRatio,
		MinChunkSize:     cfg.MinChunkSize,
		UseHybrid:        cfg.UseHybrid,
	}, auditLogger)
	detectHandler := detect.NewHandler(detectService, publisher)

	corpusService := corpus.NewService(store)
	corpusHandler := corpus.NewHandler(corpusService)

	mux := http.NewServeMux()

	mux.Handle("POST /check", middleware.CorrelationID(http.HandlerFunc(detectHandler.Check)))
	mux.Handle("POST /check_only", middleware.CorrelationID(http.HandlerFunc(detectHandler.CheckOnly)))
	mux.Handle("POST /check_async", middleware.CorrelationID(http.HandlerFunc(detectHandler.CheckAsync)))
	mux.Handle("GET /config", middleware.CorrelationID(http.HandlerFunc(detectHandler.GetConfig)))

	mux.Handle("POST /delete_batch", middleware.CorrelationID(http.HandlerFunc(corpusHandler.DeleteBatch)))
	mux.Handle("POST /get_parent_ids", middleware.CorrelationID(http.HandlerFunc(corpusHandler.GetParentIDs)))
	mux.Handle("GET /debug", middleware.CorrelationID(http.HandlerFunc(corpusHandler.Debug)))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:       enableCORS(mux),
		DetectService: detectService,
		CorpusService: corpusService,
		port:          cfg.ServerPort,
	}, nil
}

// enableCORS wraps the whole mux so preflight requests get answered
// before method-qualified routing can reject them with a 405.
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.port),
		Handler: a.Handler,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
