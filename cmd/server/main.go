package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/basket-insights/internal/api/handlers"
	"github.com/dvloznov/basket-insights/internal/api/middleware"
	"github.com/dvloznov/basket-insights/internal/assoc"
	"github.com/dvloznov/basket-insights/internal/config"
	"github.com/dvloznov/basket-insights/internal/dataset"
	"github.com/dvloznov/basket-insights/internal/jobs"
	"github.com/dvloznov/basket-insights/internal/jobs/inmemory"
	"github.com/dvloznov/basket-insights/internal/logger"
	"github.com/dvloznov/basket-insights/internal/recommend"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	// Initial data load; the server refuses to start without a dataset.
	ds, err := dataset.Load(ctx, cfg.Data.ProductsPath, cfg.Data.PurchasesPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load dataset")
	}
	holder := dataset.NewHolder(ds)

	miningDefaults := assoc.Options{
		MinSupport:    cfg.Mining.MinSupport,
		MinConfidence: cfg.Mining.MinConfidence,
		Workers:       cfg.Mining.Workers,
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 2, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Rebuild jobs reload both sources and swap the dataset in place.
	jobHandler := func(ctx context.Context, job jobs.Job) error {
		rebuild, ok := job.(*jobs.RebuildJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", rebuild.JobID).
			Str("products", rebuild.ProductsPath).
			Str("purchases", rebuild.PurchasesPath).
			Msg("Processing rebuild job")

		fresh, err := dataset.Load(ctx, rebuild.ProductsPath, rebuild.PurchasesPath, log)
		if err != nil {
			log.Error().Err(err).Str("job_id", rebuild.JobID).Msg("Rebuild failed")
			return err
		}

		holder.Swap(fresh)
		rebuild.Transactions = fresh.Engine.TotalTransactions()
		rebuild.Categories = len(fresh.Engine.Categories())

		log.Info().
			Str("job_id", rebuild.JobID).
			Int("transactions", rebuild.Transactions).
			Int("categories", rebuild.Categories).
			Msg("Rebuild completed")

		return nil
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Initialize handlers
	windowDefaults := handlers.WindowDefaults{Start: cfg.Window.Start, End: cfg.Window.End}
	habitsHandler := handlers.NewHabitsHandler(holder, windowDefaults, log)
	associationsHandler := handlers.NewAssociationsHandler(holder, miningDefaults, jobQueue, cfg.Data.ProductsPath, cfg.Data.PurchasesPath, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)
	recommender := recommend.NewRecommender(cfg.Gemini.Model, log)
	recommendHandler := handlers.NewRecommendHandler(holder, recommender, miningDefaults, windowDefaults, log)

	// Create router
	mux := http.NewServeMux()

	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			habitsHandler.ListUsers(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/users/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		// Path shape: /api/users/{id}/habits
		rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
		userID, tail, found := strings.Cut(rest, "/")
		if !found || tail != "habits" || userID == "" {
			middleware.WriteError(w, http.StatusNotFound, "Not found")
			return
		}
		habitsHandler.GetHabits(w, r, userID)
	})

	mux.HandleFunc("/api/associations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			associationsHandler.ListAssociations(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/associations/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			associationsHandler.GetStats(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/associations/rebuild", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			associationsHandler.EnqueueRebuild(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
			return
		}
		jobsHandler.GetJob(w, r, jobID)
	})

	mux.HandleFunc("/api/recommendations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recommendHandler.Recommend(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/suggestions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		userID := strings.TrimPrefix(r.URL.Path, "/api/suggestions/")
		if userID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "User ID is required")
			return
		}
		recommendHandler.Suggestions(w, r, userID)
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
