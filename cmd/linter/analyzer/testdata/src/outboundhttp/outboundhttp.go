package outboundhttp

import (
	"net/http"
	"time"
)

func Fetch(target string) (*http.Response, error) {
	return http.Get(target) // want "http.Get uses the default client without timeout"
}

func Probe(target string) (*http.Response, error) {
	return http.Head(target) // want "http.Head uses the default client without timeout"
}

func Send(target string) (*http.Response, error) {
	return http.Post(target, "application/json", nil) // want "http.Post uses the default client without timeout"
}

func Client() *http.Client {
	return http.DefaultClient // want "http.DefaultClient has no timeout"
}

func WithTimeout(target string) (*http.Response, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	return client.Head(target)
}

func main() {
	_, _ = http.Get("https://example.com") // want "http.Get uses the default client without timeout"
}
