package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sustain-group/esg-cli/internal/model"
	"github.com/sustain-group/esg-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a read-only status and records server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildRouter wires the read-only HTTP surface over the store.
func buildRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/statuses", func(w http.ResponseWriter, req *http.Request) {
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		statuses, err := st.ListStatuses(req.Context(), store.StatusFilter{
			Stage:  model.Stage(req.URL.Query().Get("stage")),
			Status: model.Status(req.URL.Query().Get("status")),
			Limit:  limit,
		})
		if err != nil {
			writeServerError(w, "list statuses", err)
			return
		}
		if statuses == nil {
			statuses = []model.RecordStatus{}
		}
		writeJSON(w, http.StatusOK, statuses)
	})

	r.Get("/records", func(w http.ResponseWriter, req *http.Request) {
		records, err := st.ListRecords(req.Context())
		if err != nil {
			writeServerError(w, "list records", err)
			return
		}
		if records == nil {
			records = []store.StoredRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	})

	r.Get("/records/{id}", func(w http.ResponseWriter, req *http.Request) {
		rec, err := st.GetRecord(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeServerError(w, "get record", err)
			return
		}
		if rec == nil {
			http.Error(w, `{"error":"record not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	})

	r.Get("/batches", func(w http.ResponseWriter, req *http.Request) {
		jobs, err := st.ListBatchJobs(req.Context(), model.BatchJobState(req.URL.Query().Get("state")))
		if err != nil {
			writeServerError(w, "list batch jobs", err)
			return
		}
		if jobs == nil {
			jobs = []model.BatchJob{}
		}
		writeJSON(w, http.StatusOK, jobs)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeServerError(w http.ResponseWriter, operation string, err error) {
	zap.L().Error("request failed", zap.String("operation", operation), zap.Error(err))
	http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
