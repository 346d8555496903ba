package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/aCatWithSchizophrenia/SRCNotifications/internal/config"
)

const userAgent = "SRCNotifications/1.0"

// speedrun.com signals rate limiting with 420 instead of 429.
const statusThrottled = 420

type SRCClient struct {
	baseURL string
	client  *fasthttp.Client
	statsMu sync.RWMutex
	stats   RequestStats
}

// RequestStats is aggregate outbound-call telemetry, surfaced on the
// status endpoint and in the stats command.
type RequestStats struct {
	Requests    int64     `json:"requests"`
	Errors      int64     `json:"errors"`
	Throttled   int64     `json:"throttled"`
	LastStatus  int       `json:"last_status"`
	LastRequest time.Time `json:"last_request"`
}

func NewSRCClient(cfg *config.Config) *SRCClient {
	return &SRCClient{
		baseURL: cfg.SRCAPIBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *SRCClient) GetRequestStats() RequestStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()
	return c.stats
}

func (c *SRCClient) recordResult(status int, failed bool) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	c.stats.Requests++
	if failed {
		c.stats.Errors++
	}
	if status == statusThrottled {
		c.stats.Throttled++
	}
	if status != 0 {
		c.stats.LastStatus = status
	}
	c.stats.LastRequest = time.Now()
}

// SearchGames queries the game directory by free-text name. Result order is
// the upstream relevance order and the page size is capped by max.
func (c *SRCClient) SearchGames(ctx context.Context, name string, max int) (*GamesResponse, error) {
	u := fmt.Sprintf("%s/games?name=%s&max=%d", c.baseURL, url.QueryEscape(name), max)
	return doRequest[GamesResponse](ctx, c, u)
}

func (c *SRCClient) GetGame(ctx context.Context, gameID string) (*GameResponse, error) {
	u := fmt.Sprintf("%s/games/%s", c.baseURL, gameID)
	return doRequest[GameResponse](ctx, c, u)
}

// ListNewRuns returns one page of a game's pending-verification queue,
// newest submissions first.
func (c *SRCClient) ListNewRuns(ctx context.Context, gameID string, offset, max int) (*RunsResponse, error) {
	u := fmt.Sprintf("%s/runs?game=%s&status=new&orderby=submitted&direction=desc&max=%d&offset=%d", c.baseURL, gameID, max, offset)
	return doRequest[RunsResponse](ctx, c, u)
}

// GetRun fetches a single run with category, level, variables and platform
// embedded so the notifier can render without extra lookups.
func (c *SRCClient) GetRun(ctx context.Context, runID string) (*RunResponse, error) {
	u := fmt.Sprintf("%s/runs/%s?embed=category,level,variables,platform", c.baseURL, runID)
	return doRequest[RunResponse](ctx, c, u)
}

func (c *SRCClient) GetCategory(ctx context.Context, categoryID string) (*CategoryResponse, error) {
	u := fmt.Sprintf("%s/categories/%s", c.baseURL, categoryID)
	return doRequest[CategoryResponse](ctx, c, u)
}

func (c *SRCClient) GetLevel(ctx context.Context, levelID string) (*LevelResponse, error) {
	u := fmt.Sprintf("%s/levels/%s", c.baseURL, levelID)
	return doRequest[LevelResponse](ctx, c, u)
}

func (c *SRCClient) ListCategoryVariables(ctx context.Context, categoryID string) (*VariablesResponse, error) {
	u := fmt.Sprintf("%s/categories/%s/variables", c.baseURL, categoryID)
	return doRequest[VariablesResponse](ctx, c, u)
}

func (c *SRCClient) GetUser(ctx context.Context, userID string) (*UserResponse, error) {
	u := fmt.Sprintf("%s/users/%s", c.baseURL, userID)
	return doRequest[UserResponse](ctx, c, u)
}

func (c *SRCClient) GetPlatform(ctx context.Context, platformID string) (*PlatformResponse, error) {
	u := fmt.Sprintf("%s/platforms/%s", c.baseURL, platformID)
	return doRequest[PlatformResponse](ctx, c, u)
}

func doRequest[T any](ctx context.Context, client *SRCClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(userAgent)

	var err error
	deadline, ok := ctx.Deadline()
	if ok {
		err = client.client.DoDeadline(req, resp, deadline)
	} else {
		err = client.client.Do(req, resp)
	}
	if err != nil {
		client.recordResult(0, true)
		return nil, err
	}

	status := resp.StatusCode()
	client.recordResult(status, status != fasthttp.StatusOK)

	if status != fasthttp.StatusOK {
		return nil, &APIError{Status: status, URL: url}
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// APIError is any non-200 upstream answer. Callers treat it as "no data
// this cycle"; Status lets them tell a missing resource from throttling.
type APIError struct {
	Status int
	URL    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d", e.Status)
}

func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == fasthttp.StatusNotFound
}

func IsThrottled(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == statusThrottled
}
