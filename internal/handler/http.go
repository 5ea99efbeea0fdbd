package handler

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"github.com/cm8me/shortener/internal/generator"
	"github.com/cm8me/shortener/internal/logger"
	"github.com/cm8me/shortener/internal/middleware"
	"github.com/cm8me/shortener/internal/model"
	"github.com/cm8me/shortener/internal/service"
	"github.com/cm8me/shortener/internal/storage"
)

//go:embed templates/index.html
var templates embed.FS

var indexTemplate = template.Must(template.ParseFS(templates, "templates/index.html"))

type URLService interface {
	ShortenURL(ctx context.Context, target string) (string, error)
	ShortenBareHost(ctx context.Context, host string) (string, error)
	GetOriginalURL(ctx context.Context, slug string) (string, error)
	ListKeys(ctx context.Context, cursor string) (model.ListPage, error)
}

type Handler struct {
	urlService URLService
	auth       *middleware.TokenAuth
	pinger     storage.Pinger
	hostURL    string
}

// NewHandler wires the HTTP surface. pinger may be nil for backends
// without a health check.
func NewHandler(urlService URLService, auth *middleware.TokenAuth, pinger storage.Pinger, hostURL string) *Handler {
	return &Handler{
		urlService: urlService,
		auth:       auth,
		pinger:     pinger,
		hostURL:    hostURL,
	}
}

func (h *Handler) RegisterRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Use(logger.RequestLogger)

	r.Use(middleware.GzipReader)
	r.Use(middleware.GzipMiddleware)

	r.Get("/", h.handleIndex)
	r.With(h.auth.RequireToken, render.SetContentType(render.ContentTypeJSON)).
		Post("/", h.handleShorten)
	r.Get("/shorten/*", h.handleShortenBareHost)
	r.Get("/keys/list", h.handleListKeys)
	r.Get("/ping", h.handlePing)
	r.Get("/{slug}", h.handleRedirect)

	return r
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	data := struct{ HostURL string }{HostURL: h.hostURL}
	if err := indexTemplate.Execute(w, data); err != nil {
		log.Error().Err(err).Msg("Failed to render index page")
	}
}

func (h *Handler) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req ShortenRequest
	if err := render.Bind(r, &req); err != nil {
		renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	shortURL, err := h.urlService.ShortenURL(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, service.ErrInvalidURL) {
			renderError(w, r, http.StatusBadRequest, "Invalid URL")
			return
		}

		log.Error().Err(err).Str("url", req.URL).Msg("Failed to shorten URL")
		renderError(w, r, http.StatusInternalServerError, "Failed to shorten URL")
		return
	}

	render.JSON(w, r, ShortenResponse{URL: shortURL})
}

func (h *Handler) handleShortenBareHost(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "*")
	if unescaped, err := url.PathUnescape(host); err == nil {
		host = unescaped
	}

	shortURL, err := h.urlService.ShortenBareHost(r.Context(), host)
	if err != nil {
		renderError(w, r, http.StatusInternalServerError, "Failed to shorten URL")
		return
	}

	render.JSON(w, r, BareHostResponse{ShortURL: shortURL})
}

func (h *Handler) handleListKeys(w http.ResponseWriter, r *http.Request) {
	page, err := h.urlService.ListKeys(r.Context(), r.URL.Query().Get("cursor"))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidCursor) {
			renderError(w, r, http.StatusBadRequest, "Invalid cursor")
			return
		}

		log.Error().Err(err).Msg("Failed to list keys")
		renderError(w, r, http.StatusInternalServerError, "Failed to list keys")
		return
	}

	render.JSON(w, r, page)
}

func (h *Handler) handleRedirect(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if !generator.IsSlug(slug) {
		renderError(w, r, http.StatusNotFound, "URL not found")
		return
	}

	target, err := h.urlService.GetOriginalURL(r.Context(), slug)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			renderError(w, r, http.StatusNotFound, "URL not found")
			return
		}

		log.Error().Err(err).Str("slug", slug).Msg("Failed to resolve slug")
		renderError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	if h.pinger == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.pinger.Ping(r.Context()); err != nil {
		log.Error().Err(err).Msg("Storage ping failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
