package handler

import (
	"net/http/httptest"
	"testing"
)

func TestShortenRequest_Bind(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantURL string
		wantErr bool
	}{
		{name: "Plain URL", url: "https://example.com", wantURL: "https://example.com"},
		{name: "Surrounding whitespace", url: "  http://example.com/a \n", wantURL: "http://example.com/a"},
		{name: "Empty", url: "", wantErr: true},
		{name: "Only whitespace", url: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &ShortenRequest{URL: tt.url}

			err := req.Bind(httptest.NewRequest("POST", "/", nil))
			if (err != nil) != tt.wantErr {
				t.Errorf("ShortenRequest.Bind() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr && req.URL != tt.wantURL {
				t.Errorf("ShortenRequest.Bind() url = %q, want %q", req.URL, tt.wantURL)
			}
		})
	}
}
