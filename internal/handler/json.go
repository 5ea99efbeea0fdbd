package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

// ShortenRequest is the body of POST /.
type ShortenRequest struct {
	URL string `json:"url"`
}

// Bind implements render.Binder.
func (s *ShortenRequest) Bind(_ *http.Request) error {
	s.URL = strings.TrimSpace(s.URL)
	if s.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

// ShortenResponse is returned by POST /.
type ShortenResponse struct {
	URL string `json:"url"`
}

// BareHostResponse is returned by GET /shorten/{host}.
type BareHostResponse struct {
	ShortURL string `json:"short_url"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
