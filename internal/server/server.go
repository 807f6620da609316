/*
* Serves contribution reports over HTTP.
 */
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sinclairtarget/git-who-server/internal/stats"
	"github.com/sinclairtarget/git-who-server/internal/tally"
)

// Body of the 400 response when repoUrl is missing. Clients match on it.
const MissingRepoURLMessage = "Es requereix una URL del repositori."

const repoURLParam = "repoUrl"

type Reporter interface {
	Report(ctx context.Context, ref string) ([]tally.CombinedStat, error)
}

type errorBody struct {
	Error string `json:"error"`
}

// Routes:
//
//	GET /stats?repoUrl=<url>  contribution report as JSON
//	GET /healthz              liveness check
func NewHandler(reporter Reporter) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", handleStats(reporter))
	mux.HandleFunc("GET /healthz", handleHealthz)

	return withRequestLog(withCORS(mux))
}

func handleStats(reporter Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimSpace(r.URL.Query().Get(repoURLParam))
		if ref == "" {
			logger().Warn("stats requested without repository URL")
			writeJSON(w, http.StatusBadRequest, errorBody{MissingRepoURLMessage})
			return
		}

		logger().Info("stats requested", "url", ref)

		report, err := reporter.Report(r.Context(), ref)
		if errors.Is(err, stats.ErrMissingRepoURL) {
			writeJSON(w, http.StatusBadRequest, errorBody{MissingRepoURLMessage})
			return
		} else if err != nil {
			logger().Error("failed to build report", "url", ref, "error", err)
			writeJSON(
				w,
				http.StatusInternalServerError,
				errorBody{stats.Diagnostic(err)},
			)
			return
		}

		if report == nil {
			report = []tally.CombinedStat{}
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		logger().Warn("failed to write response", "error", err)
	}
}

// Serves handler on addr until ctx is done, then shuts down, giving in-flight
// requests up to grace to finish.
//
// Calls ready with the bound address once listening, if ready is not nil.
func ListenAndServe(
	ctx context.Context,
	addr string,
	handler http.Handler,
	grace time.Duration,
	ready func(addr net.Addr),
) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger().Info("listening", "addr", listener.Addr().String())
	if ready != nil {
		ready(listener.Addr())
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Serve(listener)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger().Info("shutting down", "grace", grace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
