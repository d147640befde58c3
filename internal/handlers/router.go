package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	CORSOrigins []string
	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int
	// MediaDir is served under MediaURL when uploads go to local disk.
	MediaDir string
	MediaURL string
}

func limitBodies(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// Router builds the chi router with the full middleware chain.
func (h *Handler) Router(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(WithRecover)
	r.Use(Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	if cfg.MediaDir != "" && strings.HasPrefix(cfg.MediaURL, "/") {
		prefix := strings.TrimSuffix(cfg.MediaURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(cfg.MediaDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(limitBodies)

		r.Get("/health", h.Health)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Get("/posts", h.ListPosts)
		r.Get("/posts/{postID}", h.GetPost)
		r.Get("/posts/{postID}/comments", h.ListComments)
		r.Get("/users/{username}", h.UserProfile)
		r.Get("/frontpage", h.Frontpage)
		r.Get("/ranks", h.Ranks)
		r.Get("/authors", h.Authors)
		r.Get("/hashtags", h.Hashtags)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)

			r.Get("/users/me", h.Me)
			r.Put("/users/me", h.UpdateMe)
			r.Get("/users/{userID}/posts", h.UserPosts)
			r.Post("/follow/{username}", h.Follow)

			r.Post("/posts", h.CreatePost)
			r.Put("/posts/{postID}", h.UpdatePost)
			r.Delete("/posts/{postID}", h.DeletePost)
			r.Put("/posts/{postID}/archive", h.ToggleArchive)
			r.Post("/posts/{postID}/rate", h.Rate)
			r.Post("/posts/{postID}/comments", h.CreateComment)

			r.Put("/comments/{commentID}", h.UpdateComment)
			r.Delete("/comments/{commentID}", h.DeleteComment)
		})
	})

	return r
}
