package handlers

import (
	"chatcore/internal/identity"
	"chatcore/internal/invite"
	"chatcore/internal/jwt"
	"chatcore/internal/membership"
	"chatcore/internal/messages"
	"chatcore/internal/models"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"
)

// Services are the components the HTTP surface calls into.
type Services struct {
	Directory *identity.Directory
	Ledger    *membership.Ledger
	Gate      *invite.Gate
	Log       *messages.Log
	Tokens    *jwt.Authority
}

type handler struct {
	Services
	sugar *zap.SugaredLogger
}

func NewRouter(cfg *models.ConfigFile, sugar *zap.SugaredLogger, services Services) http.Handler {
	h := &handler{Services: services, sugar: sugar}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if cfg.PrintHttpRequests {
		r.Use(middleware.Logger)
	}

	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.With(h.UserVerifier).Post("/logout", h.Logout)
			r.With(h.UserVerifier).Get("/me", h.Me)
		})

		api.Group(func(r chi.Router) {
			r.Use(h.UserVerifier)

			r.Route("/users", func(r chi.Router) {
				r.Patch("/me", h.UpdateProfile)
				r.Put("/me/status", h.SetStatus)
				r.Get("/{userID}", h.GetUser)
			})

			r.Route("/servers", func(r chi.Router) {
				r.Get("/", h.GetServerList)
				r.Post("/", h.CreateServer)
				r.Get("/{serverID}", h.GetServer)
				r.Get("/{serverID}/members", h.GetMemberList)
				r.Post("/{serverID}/channels", h.CreateChannel)
				r.Post("/{serverID}/invites", h.CreateInvite)
			})

			r.Route("/invites/{code}", func(r chi.Router) {
				r.Get("/", h.PreviewInvite)
				r.Post("/", h.RedeemInvite)
			})

			r.Route("/channels/{channelID}/messages", func(r chi.Router) {
				r.Get("/", h.GetMessageList)
				r.Post("/", h.CreateMessage)
			})

			r.Route("/dms", func(r chi.Router) {
				r.Get("/", h.GetDirectChannelList)
				r.Post("/{userID}", h.OpenDirectChannel)
			})
		})
	})

	return r
}

func Setup(isHttps bool, cfg *models.ConfigFile, sugar *zap.SugaredLogger, services Services) error {
	address := fmt.Sprintf("%s:%s", cfg.Address, cfg.Port)

	server := &http.Server{
		Addr:         address,
		Handler:      NewRouter(cfg, sugar, services),
		ErrorLog:     zap.NewStdLog(sugar.Desugar()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sugar.Infow("starting api server", "address", address, "https", isHttps)

	if isHttps {
		return server.ListenAndServeTLS(cfg.TlsCert, cfg.TlsKey)
	}
	return server.ListenAndServe()
}
