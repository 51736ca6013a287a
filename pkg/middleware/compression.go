package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Pool of default-level gzip writers
var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.DefaultCompression)
		return w
	},
}

// GzipConfig controls which responses are compressed
type GzipConfig struct {
	Level         int
	ExcludedPaths []string // exact paths served uncompressed
}

// DefaultGzipConfig skips health checks and the metrics scrape
func DefaultGzipConfig() *GzipConfig {
	return &GzipConfig{
		Level:         gzip.DefaultCompression,
		ExcludedPaths: []string{"/health", "/ready", "/metrics"},
	}
}

// gzipResponseWriter compresses the body once the handler has set a
// compressible Content-Type. Other responses pass through untouched.
type gzipResponseWriter struct {
	http.ResponseWriter
	level       int
	gz          *gzip.Writer
	decided     bool
	compressing bool
	statusCode  int
}

func (w *gzipResponseWriter) decide() {
	if w.decided {
		return
	}
	w.decided = true

	if w.statusCode == http.StatusNoContent || w.statusCode == http.StatusNotModified {
		return
	}
	h := w.ResponseWriter.Header()
	if h.Get("Content-Encoding") != "" || !CompressibleContentType(h.Get("Content-Type")) {
		return
	}
	w.compressing = true
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	h.Del("Content-Length")

	if w.level == gzip.DefaultCompression {
		w.gz = gzipWriterPool.Get().(*gzip.Writer)
		w.gz.Reset(w.ResponseWriter)
	} else {
		w.gz, _ = gzip.NewWriterLevel(w.ResponseWriter, w.level)
	}
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.decide()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if !w.compressing {
		return w.ResponseWriter.Write(b)
	}
	return w.gz.Write(b)
}

func (w *gzipResponseWriter) close() {
	if !w.compressing {
		return
	}
	w.gz.Close()
	if w.level == gzip.DefaultCompression {
		gzipWriterPool.Put(w.gz)
	}
}

// GzipHandler compresses JSON and text responses for clients that accept gzip.
// A nil cfg uses DefaultGzipConfig.
func GzipHandler(cfg *GzipConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	if cfg == nil {
		cfg = DefaultGzipConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") || excludedPath(cfg.ExcludedPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := &gzipResponseWriter{ResponseWriter: w, level: cfg.Level}
			defer gzw.close()

			next.ServeHTTP(gzw, r)

			if gzw.compressing {
				logger.Debug("Response compressed",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", gzw.statusCode),
				)
			}
		})
	}
}

func excludedPath(paths []string, path string) bool {
	for _, p := range paths {
		if p == path {
			return true
		}
	}
	return false
}

// CompressibleContentType returns true if content type should be compressed
func CompressibleContentType(contentType string) bool {
	compressible := []string{
		"text/",
		"application/json",
		"application/problem+json",
	}

	for _, prefix := range compressible {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}

	return false
}
