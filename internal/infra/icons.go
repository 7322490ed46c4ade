package infra

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"coinbot/internal/domain"

	"github.com/disintegration/imaging"
)

// IconCache downloads and caches coin icons from the asset CDN.
type IconCache struct {
	basePath string
	client   *http.Client
}

// NewIconCache creates a new IconCache rooted at dir
func NewIconCache(dir string) (*IconCache, error) {
	if dir == "" {
		dir = filepath.Join("data", "icons")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create icons directory: %w", err)
	}

	// Optimize HTTP Transport to prevent connection leaks
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 100
	transport.MaxConnsPerHost = 10
	transport.IdleConnTimeout = 30 * time.Second

	return &IconCache{
		basePath: dir,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}, nil
}

// DownloadIcon downloads the icon for a quote if it doesn't exist yet.
// Returns the local file path on success. Images are resized to 32x32
// pixels for consistent rendering.
func (c *IconCache) DownloadIcon(q *domain.Quote) (string, error) {
	// Sanitize symbol to prevent path traversal
	safeSymbol := sanitizeSymbol(q.Symbol)
	if safeSymbol == "" {
		return "", fmt.Errorf("invalid symbol: %s", q.Symbol)
	}
	if q.AssetID == 0 {
		return "", fmt.Errorf("no asset id for %s", q.Symbol)
	}

	fileName := strings.ToLower(safeSymbol) + ".png"
	filePath := filepath.Join(c.basePath, fileName)

	// Check if exists
	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil // Already exists (Cache Hit)
	}

	resp, err := c.client.Get(q.IconURL())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	srcImg, err := imaging.Decode(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	// Resize with high-quality Lanczos filter
	resizedImg := imaging.Resize(srcImg, 32, 32, imaging.Lanczos)

	if err := imaging.Save(resizedImg, filePath); err != nil {
		return "", fmt.Errorf("failed to save resized image: %w", err)
	}

	return filePath, nil
}

// IconPath returns the local path for a symbol's icon
func (c *IconCache) IconPath(symbol string) string {
	return filepath.Join(c.basePath, strings.ToLower(sanitizeSymbol(symbol))+".png")
}

func sanitizeSymbol(symbol string) string {
	res := make([]rune, 0, len(symbol))
	for _, r := range symbol {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			res = append(res, r)
		}
	}
	return string(res)
}
