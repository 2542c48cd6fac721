package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BuzzLyutic/taskmaster/internal/auth"
)

func NewRouter(tasks *TaskHandler, authH *AuthHandler, gw *auth.Gateway) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authH.SignUp)
		r.Post("/signin", authH.SignIn)
		r.Post("/refresh", authH.Refresh)
		r.Post("/signout", authH.SignOut)
		r.Get("/providers", authH.Providers)
		r.Get("/{provider}/start", authH.StartOAuth)
		r.Get("/{provider}/callback", authH.OAuthCallback)
		r.With(Authenticator(gw)).Get("/me", authH.Me)
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(Authenticator(gw))
		r.Get("/", tasks.List)
		r.Post("/", tasks.Create)
		r.Get("/changes", tasks.Changes)
		r.Get("/{id}", tasks.Get)
		r.Put("/{id}", tasks.Update)
		r.Patch("/{id}", tasks.Patch)
		r.Delete("/{id}", tasks.Delete)
	})

	return r
}
