// Package remote discovers skills published in curated GitHub repositories
// and downloads them into the local filesystem.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"skillgap/logger"
	"skillgap/skill"
)

var (
	ErrNotFound         = errors.New("remote: not found")
	ErrRateLimited      = errors.New("remote: rate limit exceeded")
	ErrAllSourcesFailed = errors.New("remote: all sources failed")
	ErrTooLarge         = errors.New("remote: response too large")
)

// rateLimitThreshold is the remaining-request count below which the client
// warns once.
const rateLimitThreshold = 10

const (
	maxTreeBytes    = 32 << 20
	maxContentBytes = 16 << 20
)

// HTTPError is a non-2xx response from the API or raw content host.
type HTTPError struct {
	URL         string
	StatusCode  int
	Body        string
	RateLimited bool
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is maps status codes onto the package sentinels.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRateLimited:
		return e.RateLimited
	}
	return false
}

// RateLimit is the last rate-limit state reported by the API.
type RateLimit struct {
	Remaining int       `json:"remaining"`
	Reset     time.Time `json:"reset"`
}

// Config holds Remote Client configuration.
type Config struct {
	Sources     []skill.RepoSource // appended to DefaultSources
	NoDefaults  bool               // skip DefaultSources
	Token       string
	CacheTTL    time.Duration
	APIBaseURL  string
	RawBaseURL  string
	BatchSize   int
	BatchDelay  time.Duration
	HTTPTimeout time.Duration
	SkillFile   string
	UserAgent   string
}

func (c *Config) applyDefaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "https://api.github.com"
	}
	if c.RawBaseURL == "" {
		c.RawBaseURL = "https://raw.githubusercontent.com"
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	c.RawBaseURL = strings.TrimRight(c.RawBaseURL, "/")
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	} else if c.BatchDelay == 0 {
		c.BatchDelay = 150 * time.Millisecond
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.SkillFile == "" {
		c.SkillFile = skill.DefaultFileName
	}
	if c.UserAgent == "" {
		c.UserAgent = "skillgap"
	}
}

// TreeEntry is one item of a recursive git tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Client fetches skill catalogs from GitHub. Each client owns its caches.
type Client struct {
	cfg        Config
	registry   *Registry
	httpClient *http.Client
	log        logger.Logger

	trees    *Cache[[]TreeEntry]
	contents *Cache[string]

	// sleep pauses between batch windows; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	rateMu   sync.Mutex
	rate     *RateLimit
	rateOnce sync.Once
}

// NewClient creates a Remote Client.
func NewClient(cfg Config, log logger.Logger) *Client {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Nop()
	}

	var sources []skill.RepoSource
	if !cfg.NoDefaults {
		sources = DefaultSources()
	}
	sources = append(sources, cfg.Sources...)

	return &Client{
		cfg:        cfg,
		registry:   NewRegistry(sources, log),
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		log:        log,
		trees:      NewCache[[]TreeEntry](cfg.CacheTTL),
		contents:   NewCache[string](cfg.CacheTTL),
		sleep:      sleepCtx,
	}
}

// Registry returns the client's source registry.
func (c *Client) Registry() *Registry { return c.registry }

// RateLimit returns the most recent rate-limit state, if any was reported.
func (c *Client) RateLimit() (RateLimit, bool) {
	c.rateMu.Lock()
	defer c.rateMu.Unlock()
	if c.rate == nil {
		return RateLimit{}, false
	}
	return *c.rate, true
}

// ClearCache drops both the tree and content caches.
func (c *Client) ClearCache() {
	c.trees.Clear()
	c.contents.Clear()
	c.log.Debug("remote.cache_cleared")
}

// Tree returns the recursive tree listing for src's branch.
func (c *Client) Tree(ctx context.Context, src skill.RepoSource) ([]TreeEntry, error) {
	key := src.Owner + "/" + src.Repo + "@" + src.Branch
	if entries, ok := c.trees.Get(key); ok {
		return entries, nil
	}

	u := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		c.cfg.APIBaseURL, url.PathEscape(src.Owner), url.PathEscape(src.Repo), url.PathEscape(src.Branch))
	body, err := c.get(ctx, u, true, maxTreeBytes)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Tree      []TreeEntry `json:"tree"`
		Truncated bool        `json:"truncated"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode tree %s: %w", key, err)
	}
	if resp.Truncated {
		c.log.Warn("remote.tree_truncated", logger.String("source", key))
	}

	c.trees.Set(key, resp.Tree)
	return resp.Tree, nil
}

// Raw returns the content of repoPath in src's branch.
func (c *Client) Raw(ctx context.Context, src skill.RepoSource, repoPath string) (string, error) {
	repoPath = strings.TrimLeft(repoPath, "/")
	key := src.Owner + "/" + src.Repo + "/" + repoPath + "@" + src.Branch
	if content, ok := c.contents.Get(key); ok {
		return content, nil
	}

	segs := strings.Split(repoPath, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	u := fmt.Sprintf("%s/%s/%s/%s/%s",
		c.cfg.RawBaseURL, url.PathEscape(src.Owner), url.PathEscape(src.Repo), url.PathEscape(src.Branch), strings.Join(segs, "/"))
	body, err := c.get(ctx, u, false, maxContentBytes)
	if err != nil {
		return "", err
	}

	content := string(body)
	c.contents.Set(key, content)
	return content, nil
}

func (c *Client) get(ctx context.Context, u string, api bool, limit int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if api {
		req.Header.Set("Accept", "application/vnd.github+json")
		if c.cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	var remaining int
	var haveRemaining bool
	if api {
		remaining, haveRemaining = c.observeRateLimit(resp.Header)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &HTTPError{
			URL:        u,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
			RateLimited: (resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests) &&
				haveRemaining && remaining == 0,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, u, limit)
	}
	return body, nil
}

func (c *Client) observeRateLimit(h http.Header) (int, bool) {
	raw := h.Get("X-RateLimit-Remaining")
	if raw == "" {
		return 0, false
	}
	remaining, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	rl := RateLimit{Remaining: remaining}
	if reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		rl.Reset = time.Unix(reset, 0)
	}

	c.rateMu.Lock()
	c.rate = &rl
	c.rateMu.Unlock()

	if remaining < rateLimitThreshold {
		c.rateOnce.Do(func() {
			fields := []logger.Field{logger.Int("remaining", remaining)}
			if !rl.Reset.IsZero() {
				fields = append(fields, logger.String("reset_at", rl.Reset.Format(time.RFC3339)))
			}
			if c.cfg.Token == "" {
				fields = append(fields, logger.String("hint", "set remote.token or GITHUB_TOKEN for a higher limit"))
			}
			c.log.Warn("remote.rate_limit_low", fields...)
		})
	}
	return remaining, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
