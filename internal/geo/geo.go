// Package geo resolves a client IP to the country recorded on click events.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Unknown is recorded when the country cannot be determined.
const Unknown = "Unknown"

type Locator interface {
	Country(ctx context.Context, ip string) string
}

// Static always answers Unknown.
type Static struct{}

func (Static) Country(context.Context, string) string {
	return Unknown
}

type cacheItem struct {
	country string
	expires time.Time
}

// IPWhoIs looks countries up against an ipwho.is compatible endpoint and
// caches answers in process.
type IPWhoIs struct {
	endpoint string
	client   *http.Client
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheItem
}

func NewIPWhoIs(endpoint string, timeout, ttl time.Duration, log *zap.Logger) *IPWhoIs {
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &IPWhoIs{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		ttl:      ttl,
		log:      log.With(zap.String("component", "geo")),
		now:      time.Now,
		cache:    make(map[string]cacheItem),
	}
}

func (g *IPWhoIs) Country(ctx context.Context, ip string) string {
	if ip == "" || isPrivateIP(ip) {
		return Unknown
	}

	now := g.now()
	g.mu.Lock()
	if item, ok := g.cache[ip]; ok && now.Before(item.expires) {
		g.mu.Unlock()
		return item.country
	}
	g.mu.Unlock()

	country, err := g.lookup(ctx, ip)
	if err != nil {
		g.log.Debug("country lookup failed", zap.String("ip", ip), zap.Error(err))
		return Unknown
	}

	g.mu.Lock()
	g.cache[ip] = cacheItem{country: country, expires: now.Add(g.ttl)}
	g.mu.Unlock()

	return country
}

func (g *IPWhoIs) lookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+ip, nil)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Success bool   `json:"success"`
		Country string `json:"country"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.Success {
		return "", fmt.Errorf("lookup rejected: %s", out.Message)
	}

	country := strings.TrimSpace(out.Country)
	if country == "" {
		return Unknown, nil
	}
	return country, nil
}

func isPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsLinkLocalUnicast() || parsed.IsUnspecified()
}
