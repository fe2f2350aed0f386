package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/repovet/repovet/internal/config"
	"github.com/repovet/repovet/internal/model"
)

const perPage = 100

// Client talks to the public GitHub REST API without authentication.
// Every request is rate-limited client-side and retried on transport
// failures with exponential backoff plus jitter. Non-200 statuses are not
// retried; callers decide what a given status means.
type Client struct {
	httpClient    *http.Client
	archiveClient *http.Client
	baseURL       string
	userAgent     string
	retries       int
	backoff       time.Duration
	limiter       *rate.Limiter
	log           *zap.Logger

	// injectable for tests
	sleep  func(time.Duration)
	jitter func() float64
}

// New creates a GitHub client from HTTP configuration.
func New(cfg config.HTTPConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	return &Client{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		archiveClient: &http.Client{Timeout: cfg.ArchiveTimeout},
		baseURL:       cfg.BaseURL,
		userAgent:     cfg.UserAgent,
		retries:       cfg.Retries,
		backoff:       cfg.Backoff,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		log:           log,
		sleep:         time.Sleep,
		jitter:        rand.Float64,
	}
}

// get performs one GET with rate limiting and bounded retries. Only
// transport-level failures are retried; any HTTP response, whatever its
// status, is returned to the caller.
func (c *Client) get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	backoff := c.backoff
	var lastErr error

	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			c.log.Debug("retrying request",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff))
			c.sleep(backoff + time.Duration(c.jitter()*0.2*float64(time.Second)))
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/vnd.github+json")

		resp, err := client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %s: %w", c.retries, rawURL, lastErr)
}

// ListRepos pages through a user's public repositories sorted by last push.
// It stops at max results, on a short page, or when the host rate-limits
// (recorded in FetchMeta, not an error). The final list is re-sorted by
// push time descending and truncated to max.
func (c *Client) ListRepos(ctx context.Context, user string, max int) ([]model.RepoMeta, model.FetchMeta, error) {
	var out []model.RepoMeta
	meta := model.FetchMeta{}

	page := 1
	for {
		q := url.Values{}
		q.Set("per_page", strconv.Itoa(perPage))
		q.Set("page", strconv.Itoa(page))
		q.Set("sort", "pushed")
		u := fmt.Sprintf("%s/users/%s/repos?%s", c.baseURL, url.PathEscape(user), q.Encode())

		resp, err := c.get(ctx, c.httpClient, u)
		if err != nil {
			return nil, meta, fmt.Errorf("list repos: %w", err)
		}

		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			meta.RateLimited = true
			c.log.Warn("repository listing rate-limited", zap.String("user", user), zap.Int("page", page))
			break
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			break
		}

		var pageRepos []model.RepoMeta
		err = json.NewDecoder(resp.Body).Decode(&pageRepos)
		resp.Body.Close()
		if err != nil || len(pageRepos) == 0 {
			break
		}

		out = append(out, pageRepos...)
		meta.PagesFetched++

		if len(out) >= max || len(pageRepos) < perPage {
			break
		}
		page++
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PushedAt > out[j].PushedAt
	})
	if len(out) > max {
		out = out[:max]
	}
	return out, meta, nil
}

// GetRepo fetches metadata for one repository by full name. A nil result
// with nil error means the repository is not publicly visible.
func (c *Client) GetRepo(ctx context.Context, fullName string) (*model.RepoMeta, error) {
	u := fmt.Sprintf("%s/repos/%s", c.baseURL, fullName)

	resp, err := c.get(ctx, c.httpClient, u)
	if err != nil {
		return nil, fmt.Errorf("get repo %s: %w", fullName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var repo model.RepoMeta
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return nil, fmt.Errorf("decode repo %s: %w", fullName, err)
	}
	return &repo, nil
}

// DownloadZipball fetches the source archive of one branch. The caller owns
// caching; this always hits the network.
func (c *Client) DownloadZipball(ctx context.Context, fullName, branch string) ([]byte, error) {
	u := fmt.Sprintf("%s/repos/%s/zipball/%s", c.baseURL, fullName, url.PathEscape(branch))

	resp, err := c.get(ctx, c.archiveClient, u)
	if err != nil {
		return nil, fmt.Errorf("download zipball %s@%s: %w", fullName, branch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("zipball download failed %s@%s: status %d", fullName, branch, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read zipball %s@%s: %w", fullName, branch, err)
	}
	return data, nil
}
