package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cm8me/shortener/internal/generator"
	"github.com/cm8me/shortener/internal/model"
	"github.com/cm8me/shortener/internal/storage"
)

// DefaultMaxAttempts bounds the slug collision retry loop.
const DefaultMaxAttempts = 16

var (
	// ErrInvalidURL is returned when a target is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrShortenFailed wraps every failure of ShortenBareHost.
	ErrShortenFailed = errors.New("failed to shorten url")
	// ErrSlugSpaceExhausted is returned when every generated slug was taken.
	ErrSlugSpaceExhausted = errors.New("could not find a free slug")
)

// Prober picks the scheme for a bare host.
type Prober interface {
	URL(ctx context.Context, host string) string
}

// ProbeQueue accepts background probe jobs for freshly stored bare hosts.
type ProbeQueue interface {
	Submit(slug, host string) error
}

// Config holds everything URLService needs besides its storage.
type Config struct {
	// BaseURL prefixes slugs returned by Shorten, e.g. https://cm8.me.
	BaseURL string
	// MaxAttempts caps slug regeneration on collision; <= 0 means unbounded.
	MaxAttempts int
	// ListLimit is the page size passed to the backend listing.
	ListLimit int
	// Generate defaults to generator.NewSlug.
	Generate generator.Func
	Prober   Prober
	// ProbeQueue, when set, makes ShortenBareHost store https immediately
	// and leave the reachability check to the queue.
	ProbeQueue ProbeQueue
}

// URLService provides business logic for creating and resolving short URLs.
type URLService struct {
	storage     storage.KVStore
	baseURL     string
	shortDomain string
	maxAttempts int
	listLimit   int
	generate    generator.Func
	prober      Prober
	queue       ProbeQueue
}

// NewURLService constructs a URLService with the given storage and config.
func NewURLService(store storage.KVStore, cfg Config) *URLService {
	generate := cfg.Generate
	if generate == nil {
		generate = generator.NewSlug
	}

	return &URLService{
		storage:     store,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		shortDomain: shortDomain(cfg.BaseURL),
		maxAttempts: cfg.MaxAttempts,
		listLimit:   cfg.ListLimit,
		generate:    generate,
		prober:      cfg.Prober,
		queue:       cfg.ProbeQueue,
	}
}

// ShortenURL stores target under a fresh slug and returns BaseURL/slug.
func (s *URLService) ShortenURL(ctx context.Context, target string) (string, error) {
	if err := validateTarget(target); err != nil {
		return "", err
	}

	slug, err := s.save(ctx, target)
	if err != nil {
		return "", err
	}

	return url.JoinPath(s.baseURL, slug)
}

// ShortenBareHost shortens a host or host/path given without a scheme.
// The result is "<short domain>/<slug>", e.g. cm8.me/abc1234.
func (s *URLService) ShortenBareHost(ctx context.Context, host string) (string, error) {
	slug, err := s.shortenBareHost(ctx, host)
	if err != nil {
		log.Error().Err(err).Str("host", host).Msg("Failed to shorten bare host")
		return "", fmt.Errorf("%w: %v", ErrShortenFailed, err)
	}

	return s.shortDomain + "/" + slug, nil
}

func (s *URLService) shortenBareHost(ctx context.Context, host string) (string, error) {
	host = stripScheme(strings.TrimSpace(host))
	if host == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidURL)
	}

	var target string
	switch {
	case s.queue != nil:
		target = "https://" + host
	case s.prober != nil:
		target = s.prober.URL(ctx, host)
		// a cancelled check falls back to http without learning anything
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("reachability check interrupted: %w", err)
		}
	default:
		target = "https://" + host
	}

	if err := validateTarget(target); err != nil {
		return "", err
	}

	slug, err := s.save(ctx, target)
	if err != nil {
		return "", err
	}

	if s.queue != nil {
		if err := s.queue.Submit(slug, host); err != nil {
			log.Warn().Err(err).Str("slug", slug).Msg("Probe queue rejected job, keeping https")
		}
	}

	return slug, nil
}

// GetOriginalURL resolves a slug. A miss is reported as storage.ErrNotFound.
func (s *URLService) GetOriginalURL(ctx context.Context, slug string) (string, error) {
	return s.storage.Get(ctx, slug)
}

// ListKeys returns one page of the backend listing; cursor is passed through untouched.
func (s *URLService) ListKeys(ctx context.Context, cursor string) (model.ListPage, error) {
	return s.storage.List(ctx, storage.ListOptions{Cursor: cursor, Limit: s.listLimit})
}

// save generates slugs until one can be inserted without overwriting an existing key.
func (s *URLService) save(ctx context.Context, target string) (string, error) {
	for attempt := 1; s.maxAttempts <= 0 || attempt <= s.maxAttempts; attempt++ {
		slug, err := s.generate()
		if err != nil {
			return "", fmt.Errorf("error generating slug: %w", err)
		}

		err = s.storage.PutIfAbsent(ctx, slug, target)
		if err == nil {
			return slug, nil
		}
		if !errors.Is(err, storage.ErrKeyExists) {
			return "", fmt.Errorf("error saving mapping: %w", err)
		}

		log.Debug().Str("slug", slug).Int("attempt", attempt).Msg("Slug collision, regenerating")
	}

	return "", ErrSlugSpaceExhausted
}

func validateTarget(target string) error {
	u, err := url.ParseRequestURI(target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return nil
}

func stripScheme(host string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if len(host) >= len(prefix) && strings.EqualFold(host[:len(prefix)], prefix) {
			return host[len(prefix):]
		}
	}
	return host
}

// shortDomain drops the scheme of baseURL: https://cm8.me -> cm8.me.
func shortDomain(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(stripScheme(baseURL), "/")
	}

	return u.Host + strings.TrimSuffix(u.Path, "/")
}
