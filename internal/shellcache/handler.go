package shellcache

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"
)

const (
	modelsPrefix   = "/models/"
	externalPrefix = "/ext/"

	fetchTimeout = 30 * time.Second
)

// Handler serves GET requests through the cache bucket. Shell assets are
// served cache-first: once cached they are never re-fetched within a cache
// version. Model files and proxied external resources are served
// stale-while-revalidate: the cached copy goes out immediately and a
// background fetch refreshes it for the next request. Non-GET requests
// bypass the cache and are reverse-proxied to the upstream.
type Handler struct {
	bucket   *Bucket
	upstream *url.URL
	client   *http.Client
	proxy    *httputil.ReverseProxy
}

// NewHandler creates a caching handler in front of the upstream base URL.
func NewHandler(bucket *Bucket, upstream string) (*Handler, error) {
	base, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream url %q must be absolute", upstream)
	}
	return &Handler{
		bucket:   bucket,
		upstream: base,
		client:   &http.Client{Timeout: fetchTimeout},
		proxy:    httputil.NewSingleHostReverseProxy(base),
	}, nil
}

// Precache fetches the listed shell resources into the bucket. A resource
// that fails to download is logged and skipped; the install itself never
// fails because of one bad resource.
func (h *Handler) Precache(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return
		}
		data, contentType, status, err := h.fetch(ctx, h.resolveUpstream(p))
		if err != nil {
			log.Printf("Warning: precaching %s: %v", p, err)
			continue
		}
		if status != http.StatusOK {
			log.Printf("Warning: precaching %s: upstream returned %d", p, status)
			continue
		}
		if err := h.bucket.Put(p, contentType, data); err != nil {
			log.Printf("Warning: storing precached %s: %v", p, err)
		}
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.proxy.ServeHTTP(w, r)
		return
	}

	key := r.URL.Path

	switch {
	case strings.HasPrefix(key, externalPrefix):
		target, err := url.PathUnescape(strings.TrimPrefix(key, externalPrefix))
		if err != nil || !strings.HasPrefix(target, "http") {
			http.Error(w, "invalid external resource url", http.StatusBadRequest)
			return
		}
		h.staleWhileRevalidate(w, r, key, target)
	case strings.HasPrefix(key, modelsPrefix):
		h.staleWhileRevalidate(w, r, key, h.resolveUpstream(key))
	default:
		h.cacheFirst(w, r, key, h.resolveUpstream(key))
	}
}

// cacheFirst serves the cached entry when present and only contacts the
// upstream on a miss.
func (h *Handler) cacheFirst(w http.ResponseWriter, r *http.Request, key, target string) {
	if data, contentType, ok := h.bucket.Get(key); ok {
		serve(w, contentType, data)
		return
	}

	data, contentType, status, err := h.fetch(r.Context(), target)
	if err != nil {
		http.Error(w, "upstream unreachable", http.StatusBadGateway)
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		w.Write(data)
		return
	}
	if err := h.bucket.Put(key, contentType, data); err != nil {
		log.Printf("Warning: caching %s: %v", key, err)
	}
	serve(w, contentType, data)
}

// staleWhileRevalidate serves the cached entry immediately and refreshes
// it in the background. A failed refresh keeps the stale copy.
func (h *Handler) staleWhileRevalidate(w http.ResponseWriter, r *http.Request, key, target string) {
	if data, contentType, ok := h.bucket.Get(key); ok {
		serve(w, contentType, data)
		go h.refresh(key, target)
		return
	}

	data, contentType, status, err := h.fetch(r.Context(), target)
	if err != nil {
		http.Error(w, "upstream unreachable", http.StatusBadGateway)
		return
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
		w.Write(data)
		return
	}
	if err := h.bucket.Put(key, contentType, data); err != nil {
		log.Printf("Warning: caching %s: %v", key, err)
	}
	serve(w, contentType, data)
}

func (h *Handler) refresh(key, target string) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	data, contentType, status, err := h.fetch(ctx, target)
	if err != nil {
		log.Printf("Warning: refreshing %s: %v", key, err)
		return
	}
	if status != http.StatusOK {
		log.Printf("Warning: refreshing %s: upstream returned %d", key, status)
		return
	}
	if err := h.bucket.Put(key, contentType, data); err != nil {
		log.Printf("Warning: storing refreshed %s: %v", key, err)
	}
}

func (h *Handler) fetch(ctx context.Context, target string) (data []byte, contentType string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("building request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("fetching %s: %w", target, err)
	}
	defer resp.Body.Close()

	data, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", 0, fmt.Errorf("reading %s: %w", target, err)
	}
	return data, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}

func (h *Handler) resolveUpstream(path string) string {
	ref := &url.URL{Path: path}
	return h.upstream.ResolveReference(ref).String()
}

func serve(w http.ResponseWriter, contentType string, data []byte) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Write(data)
}
