package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/cm8me/shortener/internal/pool"
)

var bodyBuffers = pool.New(64, func() *bytes.Buffer { return new(bytes.Buffer) })

// bufferedWriter holds the response body until the handler is done so the
// middleware can decide on compression from the final Content-Type.
type bufferedWriter struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

// WriteHeader captures the status code without immediately writing it.
func (w *bufferedWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
}

// Write appends the byte slice to the body buffer.
func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func compressible(contentType string) bool {
	return strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "text/html") ||
		strings.Contains(contentType, "text/plain")
}

// GzipMiddleware compresses JSON, HTML and text responses for clients that accept gzip.
func GzipMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}

		buf := bodyBuffers.Get()
		defer bodyBuffers.Put(buf)

		bw := &bufferedWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           buf,
		}

		next.ServeHTTP(bw, r)

		if buf.Len() == 0 || !compressible(w.Header().Get("Content-Type")) {
			w.WriteHeader(bw.statusCode)
			_, _ = w.Write(buf.Bytes())
			return
		}

		gz, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
		if err != nil {
			w.WriteHeader(bw.statusCode)
			_, _ = w.Write(buf.Bytes())
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		w.Header().Del("Content-Length")
		w.WriteHeader(bw.statusCode)

		_, _ = gz.Write(buf.Bytes())
		_ = gz.Close()
	})
}

// GzipReader transparently decompresses gzipped request bodies.
func GzipReader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") != "gzip" {
			next.ServeHTTP(w, r)
			return
		}

		gzReader, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, "Failed to read gzipped request", http.StatusBadRequest)
			return
		}
		defer gzReader.Close()

		r.Body = io.NopCloser(gzReader)
		r.Header.Del("Content-Encoding")
		r.ContentLength = -1

		next.ServeHTTP(w, r)
	})
}
