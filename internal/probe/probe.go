package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single HEAD request.
const DefaultTimeout = 5 * time.Second

// Prober decides which scheme a bare host should be shortened with.
type Prober struct {
	client *http.Client
}

// New creates a Prober whose requests give up after timeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return NewWithClient(&http.Client{Timeout: timeout})
}

// NewWithClient creates a Prober on top of an existing client.
func NewWithClient(client *http.Client) *Prober {
	return &Prober{client: client}
}

// URL returns "https://"+host when a HEAD request to it answers 2xx,
// and "http://"+host otherwise.
func (p *Prober) URL(ctx context.Context, host string) string {
	secure := "https://" + host
	if p.reachable(ctx, secure) {
		return secure
	}

	return "http://" + host
}

func (p *Prober) reachable(ctx context.Context, target string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		log.Debug().Err(err).Str("url", target).Msg("Cannot build probe request")
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", target).Msg("Probe failed")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
