package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gunzip(t *testing.T, data []byte) string {
	t.Helper()

	reader, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer reader.Close()

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	return string(body)
}

func TestGzipMiddleware_CompressionDecision(t *testing.T) {
	tests := []struct {
		name           string
		acceptEncoding string
		contentType    string
		body           string
		wantGzip       bool
	}{
		{
			name:           "JSON is compressed",
			acceptEncoding: "gzip",
			contentType:    "application/json; charset=utf-8",
			body:           `{"url":"https://cm8.me/abc1234"}`,
			wantGzip:       true,
		},
		{
			name:           "HTML index is compressed",
			acceptEncoding: "gzip, deflate, br",
			contentType:    "text/html; charset=utf-8",
			body:           "<h1>URL shortener</h1>",
			wantGzip:       true,
		},
		{
			name:           "Binary content passes through",
			acceptEncoding: "gzip",
			contentType:    "image/png",
			body:           "\x89PNG",
		},
		{
			name:           "Empty body passes through",
			acceptEncoding: "gzip",
			contentType:    "application/json",
			body:           "",
		},
		{
			name:        "Client without gzip support",
			contentType: "application/json",
			body:        `{"short_url":"cm8.me/abc1234"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Header().Set("Content-Length", "999")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(tt.body))
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rec := httptest.NewRecorder()

			GzipMiddleware(handler).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			if !tt.wantGzip {
				assert.Empty(t, rec.Header().Get("Content-Encoding"))
				assert.Equal(t, tt.body, rec.Body.String())
				return
			}

			assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
			assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
			assert.Empty(t, rec.Header().Get("Content-Length"), "stale length must be dropped")
			assert.Equal(t, tt.body, gunzip(t, rec.Body.Bytes()))
		})
	}
}

func TestGzipMiddleware_BufferedWritesAreJoined(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Content-Type set after the first write still decides compression.
		w.Write([]byte(`{"keys":[],`))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`"list_complete":true}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/keys/list", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	GzipMiddleware(handler).ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"keys":[],"list_complete":true}`, gunzip(t, rec.Body.Bytes()))
}

func TestGzipMiddleware_ReusedBuffersDoNotLeak(t *testing.T) {
	bodies := []string{`{"url":"https://cm8.me/aaaaaaa"}`, `{"url":"x"}`}

	for _, body := range bodies {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		})

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()

		GzipMiddleware(handler).ServeHTTP(rec, req)

		assert.Equal(t, body, gunzip(t, rec.Body.Bytes()))
	}
}

func TestGzipReader(t *testing.T) {
	var compressed bytes.Buffer
	gzWriter := gzip.NewWriter(&compressed)
	_, err := gzWriter.Write([]byte(`{"url":"https://example.com"}`))
	require.NoError(t, err)
	require.NoError(t, gzWriter.Close())

	tests := []struct {
		name            string
		body            []byte
		contentEncoding string
		wantStatus      int
		wantBody        string
	}{
		{
			name:            "Gzipped body is decoded",
			body:            compressed.Bytes(),
			contentEncoding: "gzip",
			wantStatus:      http.StatusOK,
			wantBody:        `{"url":"https://example.com"}`,
		},
		{
			name:       "Plain body passes through",
			body:       []byte(`{"url":"https://example.com"}`),
			wantStatus: http.StatusOK,
			wantBody:   `{"url":"https://example.com"}`,
		},
		{
			name:            "Corrupt gzip is rejected",
			body:            []byte("not gzip at all"),
			contentEncoding: "gzip",
			wantStatus:      http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotEncoding string
			var gotLength int64
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotEncoding = r.Header.Get("Content-Encoding")
				gotLength = r.ContentLength

				body, err := io.ReadAll(r.Body)
				if err != nil {
					http.Error(w, "Failed to read request body", http.StatusBadRequest)
					return
				}
				w.Write(body)
			})

			req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(tt.body))
			if tt.contentEncoding != "" {
				req.Header.Set("Content-Encoding", tt.contentEncoding)
			}
			rec := httptest.NewRecorder()

			GzipReader(handler).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("GzipReader status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Empty(t, gotEncoding, "decoded request must not advertise gzip")
			if tt.contentEncoding == "gzip" {
				assert.Equal(t, int64(-1), gotLength)
			}
		})
	}
}

func TestGzipMiddleware_SkipsRedirects(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://example.com")
		w.WriteHeader(http.StatusFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/abc1234", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()

	GzipMiddleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Errorf("Expected status code %d, got %d", http.StatusFound, rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "" {
		t.Errorf("Expected no Content-Encoding, got %s", rec.Header().Get("Content-Encoding"))
	}
	if rec.Header().Get("Location") != "https://example.com" {
		t.Errorf("Expected Location to be preserved, got %s", rec.Header().Get("Location"))
	}
}

func TestGzipMiddleware_PreservesStatus(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"URL not found"}`))
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()

	GzipMiddleware(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status code %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Errorf("Expected Content-Encoding to be gzip")
	}
}
