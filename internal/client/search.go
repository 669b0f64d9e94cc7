package client

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kjstillabower/busan-travel-service/internal/circuitbreaker"
	"github.com/kjstillabower/busan-travel-service/internal/models"
	"github.com/kjstillabower/busan-travel-service/internal/observability"
)

// ErrSearchNotConfigured is returned when the Naver client id or secret is missing.
var ErrSearchNotConfigured = errors.New("search credentials not configured")

// BlogSearcher looks up blog posts for a free-text query.
type BlogSearcher interface {
	Configured() bool
	SearchBlogs(ctx context.Context, query string) ([]models.BlogPost, error)
}

// NaverSearchClient calls the Naver blog search API.
type NaverSearchClient struct {
	client       *resty.Client
	apiURL       string
	clientID     string
	clientSecret string
	display      int
	breaker      *circuitbreaker.CircuitBreaker
}

// NewNaverSearchClient returns a client for apiURL (the blog.json endpoint).
// display is the number of posts requested per query.
func NewNaverSearchClient(apiURL, clientID, clientSecret string, display int, timeout time.Duration) *NaverSearchClient {
	if display <= 0 {
		display = 6
	}
	return &NaverSearchClient{
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		apiURL:       apiURL,
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		display:      display,
	}
}

// SetCircuitBreaker guards upstream calls with cb. Nil disables it.
func (c *NaverSearchClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// Configured reports whether both the client id and the secret are set.
func (c *NaverSearchClient) Configured() bool {
	return c.clientID != "" && c.clientSecret != ""
}

type naverBlogResponse struct {
	Total int `json:"total"`
	Items []struct {
		Title       string `json:"title"`
		Link        string `json:"link"`
		Description string `json:"description"`
		BloggerName string `json:"bloggername"`
	} `json:"items"`
}

// SearchBlogs returns up to display posts ranked by similarity.
func (c *NaverSearchClient) SearchBlogs(ctx context.Context, query string) ([]models.BlogPost, error) {
	if !c.Configured() {
		return nil, ErrSearchNotConfigured
	}
	var posts []models.BlogPost
	call := func() error {
		var err error
		posts, err = c.search(ctx, query)
		return err
	}
	if c.breaker == nil {
		return posts, call()
	}
	if err := c.breaker.Call(ctx, call); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *NaverSearchClient) search(ctx context.Context, query string) ([]models.BlogPost, error) {
	var out naverBlogResponse
	req := c.client.R().
		SetContext(ctx).
		SetHeader("X-Naver-Client-Id", c.clientID).
		SetHeader("X-Naver-Client-Secret", c.clientSecret).
		SetQueryParams(map[string]string{
			"query":   query,
			"display": strconv.Itoa(c.display),
			"start":   "1",
			"sort":    "sim",
		}).
		ForceContentType("application/json").
		SetResult(&out)
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.SetHeader("X-Correlation-ID", corrID)
	}

	resp, err := req.Get(c.apiURL)
	if err != nil {
		observability.SearchCallsTotal.WithLabelValues("error").Inc()
		if isTimeout(err) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	observability.SearchCallsTotal.WithLabelValues(statusLabel(resp.StatusCode())).Inc()
	observability.SearchDuration.Observe(resp.Time().Seconds())

	switch {
	case resp.StatusCode() == 401 || resp.StatusCode() == 403:
		return nil, fmt.Errorf("%w: HTTP %d", ErrInvalidCredential, resp.StatusCode())
	case resp.StatusCode() == 429:
		return nil, fmt.Errorf("%w", ErrRateLimited)
	case !resp.IsSuccess():
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode())
	}

	posts := make([]models.BlogPost, 0, len(out.Items))
	for _, it := range out.Items {
		posts = append(posts, models.BlogPost{
			Title:       StripTags(it.Title),
			Link:        it.Link,
			Description: StripTags(it.Description),
			BloggerName: it.BloggerName,
		})
	}
	return posts, nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// StripTags removes the <b> highlight markup Naver puts around matched terms and
// decodes HTML entities.
func StripTags(s string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(s, ""))
}
