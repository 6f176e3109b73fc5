// HTTP JSON client for the social platform API.
//
// All requests carry the agent's bearer token and pass through a local
// sliding-window request throttle before reaching the network. A 429 from the
// platform surfaces as *RateLimitedError, and any other error status as
// *PlatformError.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/RussellLuo/slidingwindow"
	"github.com/carlmjohnson/versioninfo"

	"github.com/moltguard/moltguard/util"
)

const DefaultHost = "https://www.moltbook.com/api/v1"

const (
	DefaultRequestsPerMinute = 100
	// maximum page size accepted by the posts endpoint
	maxFetchLimit = 100
	// used when a 429 carries no usable retry hint
	defaultRetryAfter = 60 * time.Second
)

type Config struct {
	Host      string
	APIKey    string
	AgentName string
	// RequestsPerMinute bounds outgoing requests. Zero means the default.
	RequestsPerMinute int64
	// HTTPClient defaults to util.RobustHTTPClient().
	HTTPClient *http.Client
	UserAgent  string
	Logger     *slog.Logger
}

type Client struct {
	host      string
	apiKey    string
	agentName string
	userAgent string
	client    *http.Client
	throttle  *slidingwindow.Limiter
	rpm       int64
	logger    *slog.Logger
}

func windowFunc() (slidingwindow.Window, slidingwindow.StopFunc) {
	return slidingwindow.NewLocalWindow()
}

// NewClient validates the API key format and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if !strings.HasPrefix(cfg.APIKey, "moltbook_") {
		return nil, ErrInvalidAPIKey
	}
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = DefaultHost
	}
	if _, err := url.Parse(host); err != nil {
		return nil, fmt.Errorf("invalid platform host %q: %w", host, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "platform")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = util.RobustHTTPClientWithLogger(logger)
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = DefaultRequestsPerMinute
	}
	throttle, _ := slidingwindow.NewLimiter(time.Minute, rpm, windowFunc)

	ua := cfg.UserAgent
	if ua == "" {
		ua = "moltguard/" + versioninfo.Short()
	}

	return &Client{
		host:      host,
		apiKey:    cfg.APIKey,
		agentName: cfg.AgentName,
		userAgent: ua,
		client:    httpClient,
		throttle:  throttle,
		rpm:       rpm,
		logger:    logger,
	}, nil
}

// FetchPosts returns recent posts, optionally restricted to one community.
// Sort is one of "hot", "new", "top", "rising".
func (c *Client) FetchPosts(ctx context.Context, community, sort string, limit int) ([]Post, error) {
	if limit <= 0 || limit > maxFetchLimit {
		limit = maxFetchLimit
	}
	if sort == "" {
		sort = "new"
	}
	params := url.Values{}
	params.Set("sort", sort)
	params.Set("limit", strconv.Itoa(limit))
	if name := CommunityName(community); name != "" {
		params.Set("submolt", name)
	}

	var out struct {
		Posts []wirePost `json:"posts"`
		Data  []wirePost `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/posts", params, nil, &out); err != nil {
		return nil, err
	}
	raw := out.Posts
	if raw == nil {
		raw = out.Data
	}
	posts := make([]Post, 0, len(raw))
	for i := range raw {
		p := raw[i].post()
		if p.Community == "" {
			p.Community = CommunityName(community)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// CreatePost submits a new text post to a community.
func (c *Client) CreatePost(ctx context.Context, community, title, content string) (*Post, error) {
	body := map[string]string{
		"submolt": CommunityName(community),
		"title":   title,
	}
	if content != "" {
		body["content"] = content
	}
	raw, err := c.doRaw(ctx, http.MethodPost, "/posts", nil, body)
	if err != nil {
		return nil, err
	}
	var out struct {
		Post *wirePost `json:"post"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding created post: %w", err)
	}
	w := out.Post
	if w == nil {
		w = &wirePost{}
		_ = json.Unmarshal(raw, w)
	}
	p := w.post()
	if p.Title == "" {
		p.Title = title
	}
	if p.Content == "" {
		p.Content = content
	}
	if p.Community == "" {
		p.Community = CommunityName(community)
	}
	if p.Author == "" {
		p.Author = c.agentName
	}
	return &p, nil
}

// CreateComment replies to a post.
func (c *Client) CreateComment(ctx context.Context, postID, content string) (*Comment, error) {
	raw, err := c.doRaw(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/comments", nil, map[string]string{"content": content})
	if err != nil {
		return nil, err
	}
	var out struct {
		Comment *wireComment `json:"comment"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding created comment: %w", err)
	}
	w := out.Comment
	if w == nil {
		w = &wireComment{}
		_ = json.Unmarshal(raw, w)
	}
	cm := w.comment(postID)
	if cm.Content == "" {
		cm.Content = content
	}
	if cm.Author == "" {
		cm.Author = c.agentName
	}
	return &cm, nil
}

// GetComments lists comments on a post. Sort is one of "top", "new", "controversial".
func (c *Client) GetComments(ctx context.Context, postID, sort string) ([]Comment, error) {
	params := url.Values{}
	if sort != "" {
		params.Set("sort", sort)
	}
	var out struct {
		Comments []wireComment `json:"comments"`
		Data     []wireComment `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/posts/"+url.PathEscape(postID)+"/comments", params, nil, &out); err != nil {
		return nil, err
	}
	raw := out.Comments
	if raw == nil {
		raw = out.Data
	}
	comments := make([]Comment, 0, len(raw))
	for i := range raw {
		comments = append(comments, raw[i].comment(postID))
	}
	return comments, nil
}

// GetMe returns the authenticated agent's profile.
func (c *Client) GetMe(ctx context.Context) (*Profile, error) {
	raw, err := c.doRaw(ctx, http.MethodGet, "/agents/me", nil, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Agent *Profile `json:"agent"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	if out.Agent != nil {
		return out.Agent, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &p, nil
}

// GetKarma is the agent's current karma, used as the progress metric.
func (c *Client) GetKarma(ctx context.Context) (int, error) {
	p, err := c.GetMe(ctx)
	if err != nil {
		return 0, err
	}
	return p.Karma, nil
}

func (c *Client) UpvotePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodPost, "/posts/"+url.PathEscape(postID)+"/upvote", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	raw, err := c.doRaw(ctx, method, path, params, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	if !c.throttle.Allow() {
		return nil, &RateLimitedError{
			RetryAfter: time.Minute / time.Duration(c.rpm),
			Local:      true,
		}
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	uri := c.host + path
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	c.logger.Debug("platform request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimitedFromResponse(resp, raw)
	}
	if resp.StatusCode >= 400 {
		return nil, platformErrorFromResponse(resp, raw)
	}
	return raw, nil
}

func rateLimitedFromResponse(resp *http.Response, raw []byte) *RateLimitedError {
	var body struct {
		RetryAfterSeconds *float64 `json:"retry_after_seconds"`
		RetryAfterMinutes *float64 `json:"retry_after_minutes"`
		DailyRemaining    *int     `json:"daily_remaining"`
	}
	_ = json.Unmarshal(raw, &body)

	rle := &RateLimitedError{
		RetryAfter:     defaultRetryAfter,
		DailyRemaining: body.DailyRemaining,
	}
	switch {
	case body.RetryAfterSeconds != nil && *body.RetryAfterSeconds > 0:
		rle.RetryAfter = time.Duration(*body.RetryAfterSeconds * float64(time.Second))
	case body.RetryAfterMinutes != nil && *body.RetryAfterMinutes > 0:
		rle.RetryAfter = time.Duration(*body.RetryAfterMinutes * float64(time.Minute))
	default:
		if n, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && n > 0 {
			rle.RetryAfter = time.Duration(n) * time.Second
		}
	}
	return rle
}

func platformErrorFromResponse(resp *http.Response, raw []byte) *PlatformError {
	pe := &PlatformError{StatusCode: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
		Hint  string `json:"hint"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		pe.Message = body.Error
		pe.Hint = body.Hint
		return pe
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	pe.Message = msg
	return pe
}
