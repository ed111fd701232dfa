package handlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"popcorn/internal/metrics"
)

const (
	maxPosterWidth   = 1000
	maxPosterBytes   = 10 << 20
	defaultQuality   = 80
	posterCacheAge   = "public, max-age=2592000" // 30 days
	posterCacheExt   = ".jpg"
	posterFetchLimit = 30 * time.Second
)

var (
	errPosterNotAllowed = errors.New("URL not allowed")
	errPosterType       = errors.New("unsupported image type")
)

var posterTypes = []string{"image/jpeg", "image/png", "image/webp"}

// PosterHandler proxies poster images from the allowed hosts, resizing
// and caching them as JPEG.
type PosterHandler struct {
	fs           afero.Fs
	cacheDir     string
	allowedHosts []string
	httpc        *http.Client
	group        singleflight.Group
}

// NewPosterHandler caches under cacheDir on fs. A nil fs uses the OS filesystem.
func NewPosterHandler(fs afero.Fs, cacheDir string, allowedHosts []string) *PosterHandler {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(cacheDir, 0o755); err != nil {
		log.Printf("[posters] warning: could not create cache dir %s: %v", cacheDir, err)
	}
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &PosterHandler{
		fs:           fs,
		cacheDir:     cacheDir,
		allowedHosts: hosts,
		httpc:        &http.Client{Timeout: posterFetchLimit},
	}
}

// Proxy serves ?url= resized to ?w= pixels wide at JPEG quality ?q=.
func (h *PosterHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	sourceURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if sourceURL == "" {
		writeJSONError(w, "url parameter required", http.StatusBadRequest)
		return
	}
	if !h.allowed(sourceURL) {
		writeJSONError(w, errPosterNotAllowed.Error(), http.StatusForbidden)
		return
	}

	width := 0
	if v := r.URL.Query().Get("w"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxPosterWidth {
			width = n
		}
	}
	quality := defaultQuality
	if v := r.URL.Query().Get("q"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 100 {
			quality = n
		}
	}

	key := cacheKey(sourceURL, width, quality)
	cachePath := filepath.Join(h.cacheDir, key+posterCacheExt)

	if data, err := afero.ReadFile(h.fs, cachePath); err == nil {
		metrics.PosterCacheTotal.WithLabelValues("hit").Inc()
		writePoster(w, data, "HIT")
		return
	}

	v, err, _ := h.group.Do(key, func() (any, error) {
		return h.render(sourceURL, cachePath, width, quality)
	})
	if err != nil {
		metrics.PosterCacheTotal.WithLabelValues("error").Inc()
		log.Printf("[posters] %s: %v", sourceURL, err)
		status := http.StatusBadGateway
		if errors.Is(err, errPosterType) {
			status = http.StatusUnsupportedMediaType
		}
		writeJSONError(w, "failed to load image", status)
		return
	}
	metrics.PosterCacheTotal.WithLabelValues("miss").Inc()
	writePoster(w, v.([]byte), "MISS")
}

func (h *PosterHandler) render(sourceURL, cachePath string, width, quality int) ([]byte, error) {
	resp, err := h.httpc.Get(sourceURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return nil, err
	}
	if mt := mimetype.Detect(raw); !mimetype.EqualsAny(mt.String(), posterTypes...) {
		return nil, fmt.Errorf("%w: %s", errPosterType, mt.String())
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	img = scaleToWidth(img, width)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	data := buf.Bytes()

	tmp := cachePath + ".tmp"
	if err := afero.WriteFile(h.fs, tmp, data, 0o644); err != nil {
		log.Printf("[posters] cache write error: %v", err)
		return data, nil
	}
	if err := h.fs.Rename(tmp, cachePath); err != nil {
		_ = h.fs.Remove(tmp)
		log.Printf("[posters] cache rename error: %v", err)
	}
	return data, nil
}

// scaleToWidth downsizes img to width, keeping the aspect ratio. It never upscales.
func scaleToWidth(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	if width <= 0 || width >= bounds.Dx() {
		return img
	}
	height := max(1, bounds.Dy()*width/bounds.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func (h *PosterHandler) allowed(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return slices.Contains(h.allowedHosts, strings.ToLower(u.Hostname()))
}

// CacheStats reports the number and total size of cached posters.
func (h *PosterHandler) CacheStats() (count int, sizeBytes int64) {
	entries, err := afero.ReadDir(h.fs, h.cacheDir)
	if err != nil {
		return 0, 0
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), posterCacheExt) {
			count++
			sizeBytes += entry.Size()
		}
	}
	return count, sizeBytes
}

// PruneCache removes cached posters last written before maxAge ago.
func (h *PosterHandler) PruneCache(maxAge time.Duration) (int, error) {
	entries, err := afero.ReadDir(h.fs, h.cacheDir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), posterCacheExt) || entry.ModTime().After(cutoff) {
			continue
		}
		if err := h.fs.Remove(filepath.Join(h.cacheDir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (h *PosterHandler) Stats(w http.ResponseWriter, r *http.Request) {
	count, size := h.CacheStats()
	writeJSON(w, http.StatusOK, map[string]any{"count": count, "sizeBytes": size})
}

func writePoster(w http.ResponseWriter, data []byte, cache string) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", posterCacheAge)
	w.Header().Set("X-Cache", cache)
	w.Write(data)
}

func cacheKey(src string, width, quality int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d", src, width, quality)))
	return hex.EncodeToString(sum[:16])
}
