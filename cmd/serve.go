package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lureiq/internal/model"
	"github.com/sells-group/lureiq/internal/monitoring"
	"github.com/sells-group/lureiq/internal/resilience"
	"github.com/sells-group/lureiq/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recommendation and feedback HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		env.Warm(ctx)
		env.Scheduler.Resume(ctx)

		api := &apiServer{env: env, scoringDelay: scoringDelay(), feedbackDelay: feedbackDelay()}
		handler := buildRouter(api, cfg.Server.AllowedOrigins)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return startServer(gctx, handler, resolvePort(servePort, cfg.Server.Port))
		})
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(env.Monitor, monitoring.NewAlerter(cfg.Monitoring), env.Uploader, cfg.Monitoring)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}
		return g.Wait()
	},
}

// resolvePort prefers the --port flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler until ctx is done, then shuts down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// apiServer exposes the recommendation flow and the feedback scheduler.
type apiServer struct {
	env           *appEnv
	scoringDelay  time.Duration
	feedbackDelay time.Duration
}

func buildRouter(api *apiServer, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", api.health)
	r.Get("/conditions", api.conditions)
	r.Post("/recommend", api.recommend)

	r.Route("/feedback", func(r chi.Router) {
		r.Get("/prompt", api.prompt)
		r.Post("/resolve", api.resolve)
		r.Post("/dismiss", api.dismiss)
		r.Post("/flush", api.flush)
		r.Post("/now", api.now)
	})
	r.Post("/lifecycle/resume", api.resume)

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

type healthResponse struct {
	Status   string                      `json:"status"`
	Feedback *monitoring.MetricsSnapshot `json:"feedback,omitempty"`
}

// health reports "degraded" while the collector breaker is open. The
// server itself is still serving, so the status code stays 200.
func (a *apiServer) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if a.env.Monitor != nil {
		resp.Feedback = a.env.Monitor.Collect(r.Context())
		if resp.Feedback.BreakerState == resilience.CircuitOpen.String() {
			resp.Status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (a *apiServer) conditions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.env.Normalizer.Resolve(r.Context()))
}

type recommendRequest struct {
	Clarity string `json:"clarity"`
	Cover   string `json:"cover"`
}

type recommendResponse struct {
	Recommendation model.Recommendation   `json:"recommendation"`
	Prompt         *model.ScheduledPrompt `json:"prompt,omitempty"`
}

// recommend runs one session: autofill, confirm both answers, score, then
// schedule the follow-up.
func (a *apiServer) recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cover, err := model.ParseCover(req.Cover)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := a.env.Normalizer.Resolve(ctx)
	clarity, err := pickClarity(req.Clarity, snap.ClarityGuess)
	if err != nil {
		respondError(w, http.StatusBadRequest, "clarity is required")
		return
	}

	type scheduled struct {
		p   model.ScheduledPrompt
		err error
	}
	schedCh := make(chan scheduled, 1)
	sess := session.New(a.env.Engine,
		session.WithScoringDelay(a.scoringDelay),
		session.WithOnScored(func(rec model.Recommendation) {
			p, err := a.env.Scheduler.Schedule(ctx, rec.ID, rec.Lure, a.feedbackDelay)
			schedCh <- scheduled{p: p, err: err}
		}),
	)
	defer sess.Close()

	_ = sess.Prefill(snap.Conditions, snap.ClarityGuess)
	_ = sess.ConfirmClarity(clarity)
	_ = sess.ConfirmCover(cover)
	resCh, err := sess.Trigger()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var res session.Result
	select {
	case res = <-resCh:
	case <-ctx.Done():
		return
	}
	if res.Err != nil {
		zap.L().Error("recommend: scoring failed", zap.Error(res.Err))
		respondError(w, http.StatusInternalServerError, "scoring failed")
		return
	}

	resp := recommendResponse{Recommendation: *res.Recommendation}
	if s := <-schedCh; s.err != nil {
		zap.L().Warn("recommend: schedule prompt failed", zap.Error(s.err))
	} else {
		resp.Prompt = &s.p
	}
	respondJSON(w, http.StatusOK, resp)
}

type promptResponse struct {
	State   string                 `json:"state"`
	Visible *model.ScheduledPrompt `json:"visible,omitempty"`
	Pending *model.ScheduledPrompt `json:"pending,omitempty"`
	Queued  int                    `json:"queued"`
}

func (a *apiServer) prompt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	respondJSON(w, http.StatusOK, promptResponse{
		State:   a.env.Scheduler.State().String(),
		Visible: a.env.Scheduler.Visible(),
		Pending: a.env.Scheduler.Pending(ctx),
		Queued:  a.env.Queue.Len(ctx),
	})
}

// resolve hides the prompt before responding. With ?wait=true it also
// waits for the outcome to be recorded and the queue flushed.
func (a *apiServer) resolve(w http.ResponseWriter, r *http.Request) {
	var outcome model.Outcome
	if err := json.NewDecoder(r.Body).Decode(&outcome); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if outcome.Count != nil && *outcome.Count < 0 {
		respondError(w, http.StatusBadRequest, "count must be >= 0")
		return
	}

	task := a.env.Scheduler.Resolve(r.Context(), outcome)
	if r.URL.Query().Get("wait") != "true" {
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}
	if err := task.Wait(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"record":   task.Record,
		"uploaded": task.Uploaded,
	})
}

func (a *apiServer) dismiss(w http.ResponseWriter, r *http.Request) {
	if err := a.env.Scheduler.Dismiss(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *apiServer) flush(w http.ResponseWriter, r *http.Request) {
	n, err := a.env.Uploader.Flush(r.Context())
	if err != nil {
		respondJSON(w, http.StatusBadGateway, map[string]any{
			"error":  err.Error(),
			"queued": a.env.Queue.Len(r.Context()),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"uploaded": n})
}

func (a *apiServer) now(w http.ResponseWriter, r *http.Request) {
	p, err := a.env.Scheduler.ForcePromptNow(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "no prompt scheduled")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (a *apiServer) resume(w http.ResponseWriter, r *http.Request) {
	a.env.Scheduler.Resume(r.Context())
	respondJSON(w, http.StatusAccepted, map[string]string{"state": a.env.Scheduler.State().String()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
