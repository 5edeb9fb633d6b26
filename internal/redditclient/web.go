package redditclient

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
	"time"

	"golang.org/x/time/rate"

	"cultivator/internal/model"
	"cultivator/internal/util"
)

// bodyExcerptLen bounds the selftext kept on a candidate.
const bodyExcerptLen = 500

// WebClient talks to the site's JSON endpoints with a logged-in browser cookie.
// Posting and voting need the modhash returned by /api/me.json.
type WebClient struct {
	baseURL    string
	cookie     string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// WebOptions configures NewWebClient.
type WebOptions struct {
	BaseURL          string
	Cookie           string
	UserAgent        string
	Timeout          time.Duration
	RequestsPerSec   float64
	RateLimitBackoff time.Duration
}

func NewWebClient(o WebOptions) *WebClient {
	if o.BaseURL == "" {
		o.BaseURL = "https://www.reddit.com"
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.RateLimitBackoff <= 0 {
		o.RateLimitBackoff = 10 * time.Second
	}
	return &WebClient{
		baseURL:    strings.TrimRight(o.BaseURL, "/"),
		cookie:     o.Cookie,
		userAgent:  o.UserAgent,
		httpClient: newHTTPClient(o.Timeout, o.RateLimitBackoff),
		limiter:    newLimiter(o.RequestsPerSec),
	}
}

func (c *WebClient) auth(req *http.Request) {
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	c.public(req)
}

func (c *WebClient) public(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")
}

func (c *WebClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}

type meResponse struct {
	Data struct {
		Name         string  `json:"name"`
		LinkKarma    int     `json:"link_karma"`
		CommentKarma int     `json:"comment_karma"`
		CreatedUTC   float64 `json:"created_utc"`
		IsSuspended  bool    `json:"is_suspended"`
		Modhash      string  `json:"modhash"`
	} `json:"data"`
}

func (c *WebClient) me(ctx context.Context) (meResponse, error) {
	var out meResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/me.json", nil)
	if err != nil {
		return out, err
	}
	c.auth(req)
	resp, err := c.do(ctx, req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return out, fmt.Errorf("me: reddit status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("me: decode: %w", err)
	}
	return out, nil
}

func (c *WebClient) Me(ctx context.Context) (model.Identity, error) {
	raw, err := c.me(ctx)
	if err != nil {
		return model.Identity{}, err
	}
	d := raw.Data
	return model.Identity{
		Name:         d.Name,
		LinkKarma:    d.LinkKarma,
		CommentKarma: d.CommentKarma,
		CreatedAt:    unixSeconds(d.CreatedUTC),
		Suspended:    d.IsSuspended,
	}, nil
}

func (c *WebClient) Token(ctx context.Context) (string, error) {
	raw, err := c.me(ctx)
	if err != nil {
		return "", err
	}
	return raw.Data.Modhash, nil
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Data struct {
				Name        string  `json:"name"`
				Title       string  `json:"title"`
				Selftext    string  `json:"selftext"`
				Author      string  `json:"author"`
				Subreddit   string  `json:"subreddit"`
				Score       int     `json:"score"`
				NumComments int     `json:"num_comments"`
				CreatedUTC  float64 `json:"created_utc"`
				Permalink   string  `json:"permalink"`
				URL         string  `json:"url"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (c *WebClient) Fetch(ctx context.Context, subreddit string, limit int) ([]model.Candidate, error) {
	u := fmt.Sprintf("%s/r/%s/rising.json?limit=%d", c.baseURL, url.PathEscape(subreddit), clamp(limit, 1, 100))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	c.auth(req)
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch r/%s: reddit status %d", subreddit, resp.StatusCode)
	}
	var raw listingResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("fetch r/%s: decode: %w", subreddit, err)
	}
	out := make([]model.Candidate, 0, len(raw.Data.Children))
	for _, ch := range raw.Data.Children {
		d := ch.Data
		out = append(out, model.Candidate{
			ID:          d.Name,
			Title:       d.Title,
			Body:        util.Truncate(d.Selftext, bodyExcerptLen),
			Author:      d.Author,
			Subreddit:   d.Subreddit,
			Score:       d.Score,
			NumComments: d.NumComments,
			CreatedAt:   unixSeconds(d.CreatedUTC),
			Permalink:   d.Permalink,
			URL:         d.URL,
		})
	}
	return out, nil
}

func (c *WebClient) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	c.auth(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, req)
}

type commentResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []struct {
				Data struct {
					Permalink string `json:"permalink"`
				} `json:"data"`
			} `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

func (c *WebClient) Comment(ctx context.Context, parentID, text, token string) (CommentResult, error) {
	if token == "" {
		return CommentResult{}, errors.New("comment: missing modhash")
	}
	form := url.Values{}
	form.Set("thing_id", parentID)
	form.Set("text", text)
	form.Set("uh", token)
	form.Set("api_type", "json")
	resp, err := c.postForm(ctx, "/api/comment", form)
	if err != nil {
		return CommentResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return CommentResult{Errors: []string{"RATELIMIT: status 429"}}, nil
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return CommentResult{Errors: []string{fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))}}, nil
	}
	var raw commentResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return CommentResult{Errors: []string{"failed to parse response"}}, nil
	}
	res := CommentResult{}
	for _, e := range raw.JSON.Errors {
		parts := make([]string, 0, len(e))
		for _, p := range e {
			if s := fmt.Sprint(p); s != "" && p != nil {
				parts = append(parts, s)
			}
		}
		res.Errors = append(res.Errors, strings.Join(parts, ": "))
	}
	res.Success = len(res.Errors) == 0
	if res.Success && len(raw.JSON.Data.Things) > 0 {
		res.Permalink = raw.JSON.Data.Things[0].Data.Permalink
	}
	return res, nil
}

func (c *WebClient) Vote(ctx context.Context, id string, dir int, token string) (bool, error) {
	if token == "" {
		return false, errors.New("vote: missing modhash")
	}
	form := url.Values{}
	form.Set("id", id)
	form.Set("dir", strconv.Itoa(dir))
	form.Set("uh", token)
	resp, err := c.postForm(ctx, "/api/vote", form)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// ProbePublicProfile requests the profile with no cookie attached.
func (c *WebClient) ProbePublicProfile(ctx context.Context, name string) (Probe, error) {
	return probeProfile(ctx, c.httpClient, c.limiter, c.baseURL, c.userAgent, name)
}

type aboutResponse struct {
	Data struct {
		Name string `json:"name"`
	} `json:"data"`
}

func probeProfile(ctx context.Context, hc *http.Client, lim *rate.Limiter, baseURL, userAgent, name string) (Probe, error) {
	if name == "" {
		return Probe{}, errors.New("probe: empty name")
	}
	u := fmt.Sprintf("%s/user/%s/about.json", baseURL, url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Probe{}, err
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	req.Header.Set("Accept", "application/json")
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return Probe{}, err
		}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Probe{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return Probe{Status: resp.StatusCode, NotFound: true}, nil
	}
	if resp.StatusCode >= 400 {
		return Probe{Status: resp.StatusCode}, fmt.Errorf("probe: reddit status %d", resp.StatusCode)
	}
	var raw aboutResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Probe{Status: resp.StatusCode}, fmt.Errorf("probe: decode: %w", err)
	}
	return Probe{Status: resp.StatusCode, Name: raw.Data.Name}, nil
}

func unixSeconds(f float64) time.Time {
	if f <= 0 {
		return time.Time{}
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC()
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
