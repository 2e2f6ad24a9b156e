// Package web serves the webmemo HTTP API and the event stream.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hpungsan/webmemo/internal/app"
)

// requestTimeout bounds every route except the event stream. Captures and
// chat turns wait on the model, so it sits above the model request timeout.
const requestTimeout = 180 * time.Second

// maxBodyBytes caps request bodies; captured fragments are the largest.
const maxBodyBytes = 8 << 20

// heartbeatInterval is how often an idle event stream is pinged.
var heartbeatInterval = 15 * time.Second

// NewServer creates the HTTP server for the webmemo API.
func NewServer(a *app.App, version, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewRouter(a, version),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the route table.
func NewRouter(a *app.App, version string) http.Handler {
	h := &Handlers{app: a, version: version, log: a.Log.With(zap.String("component", "web"))}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Get("/health", h.HandleHealth)
	r.Get("/api/events", h.HandleEvents)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Post("/api/capture", h.HandleCapture)

		r.Get("/api/memos", h.HandleListMemos)
		r.Get("/api/memos/{id}", h.HandleGetMemo)
		r.Get("/api/memos/{id}/narrative", h.HandleNarrative)
		r.Delete("/api/memos/{id}", h.HandleDeleteMemo)
		r.Put("/api/memos/{id}/tag", h.HandleRetag)

		r.Get("/api/tags", h.HandleListTags)
		r.Post("/api/tags", h.HandleAddTag)
		r.Delete("/api/tags/{name}", h.HandleDeleteTag)

		r.Post("/api/chat/prepare", h.HandleChatPrepare)
		r.Post("/api/chat/reply", h.HandleChatReply)
		r.Get("/api/chats", h.HandleListChats)
		r.Post("/api/chats", h.HandleSaveChat)
		r.Get("/api/chats/{id}", h.HandleGetChat)
		r.Delete("/api/chats/{id}", h.HandleDeleteChat)

		r.Put("/api/settings/credential", h.HandleSetCredential)
		r.Post("/api/backup", h.HandleBackup)
		r.Post("/api/restore", h.HandleRestore)
		r.Get("/api/storage", h.HandleStorageUsage)
	})

	return r
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request through zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Run serves srv until ctx is canceled, then shuts it down gracefully.
func Run(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("webmemo API listening", zap.String("addr", "http://"+srv.Addr))
	if strings.HasPrefix(srv.Addr, "0.0.0.0:") || strings.HasPrefix(srv.Addr, "[::]:") || strings.HasPrefix(srv.Addr, ":") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
