package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/facegate/facegate/internal/web/handlers"
	"github.com/facegate/facegate/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	// Create handlers
	recognizeHandler := handlers.NewRecognizeHandler(s.sessions)
	personsHandler := handlers.NewPersonsHandler(s.sessions.Recognizer().Gallery())
	configHandler := handlers.NewConfigHandler(
		s.sessions.Recognizer().Gallery().Matcher(), s.detector, s.sessions.Recognizer())

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Sessions (long-running camera loops)
		r.Post("/sessions/enroll", recognizeHandler.StartEnroll)
		r.Post("/sessions/verify", recognizeHandler.StartVerify)
		r.Get("/sessions/{sessionId}", recognizeHandler.Status)
		r.Get("/sessions/{sessionId}/events", recognizeHandler.Events)
		r.Delete("/sessions/{sessionId}", recognizeHandler.Cancel)

		// Live preview
		r.Get("/preview", recognizeHandler.Preview)

		// Gallery
		r.Get("/persons", personsHandler.List)
		r.Get("/persons/{name}", personsHandler.Get)
		r.Delete("/persons/{name}", personsHandler.Delete)

		// Config
		r.Get("/config", configHandler.Get)
		r.Put("/config", configHandler.Update)
	})

	// The cached application shell serves everything else.
	if s.shell != nil {
		s.router.With(middleware.SecurityHeaders()).Handle("/*", s.shell)
		return
	}
	s.router.Get("/*", servePlaceholder)
}

// servePlaceholder renders a minimal page when no shell upstream is
// configured.
func servePlaceholder(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Facegate</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
        code { background: #2a2a3e; padding: 2px 8px; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Facegate</h1>
        <p>No shell upstream is configured. Set <code>FACEGATE_SHELL_UPSTREAM</code> to serve the kiosk frontend.</p>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}
