package main

import (
	"context"
	"encoding/json"
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

	"github.com/sells-group/imgfetch/internal/imagefetch"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server exposing image info lookups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(newFetcher(), cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// imageFetcher is the part of *imagefetch.Fetcher the server needs.
type imageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*imagefetch.Image, error)
}

func buildRouter(f imageFetcher, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/images/info", func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			writeJSON(w, http.StatusBadRequest, errorSummary{
				Kind:  imagefetch.KindInvalidURL.String(),
				Error: "url is required",
			})
			return
		}

		img, err := f.Fetch(r.Context(), target)
		if err != nil {
			// The client went away; nobody is left to answer.
			if r.Context().Err() != nil {
				return
			}
			zap.L().Warn("image info lookup failed",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("url", target),
				zap.Error(err),
			)
			writeJSON(w, statusForFetchError(err), describeError(err))
			return
		}

		writeJSON(w, http.StatusOK, summarize(img))
	})

	return r
}

// statusForFetchError maps a fetch failure to the server's response status.
func statusForFetchError(err error) int {
	switch imagefetch.KindOf(err) {
	case imagefetch.KindInvalidURL:
		return http.StatusBadRequest
	case imagefetch.KindNetwork, imagefetch.KindHTTPStatus:
		return http.StatusBadGateway
	case imagefetch.KindDecode:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
