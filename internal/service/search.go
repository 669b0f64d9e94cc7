package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/busan-travel-service/internal/client"
	"github.com/kjstillabower/busan-travel-service/internal/models"
	"github.com/kjstillabower/busan-travel-service/internal/observability"
)

// querySuffix is appended to the place name for each recommendation kind.
var querySuffix = map[string]string{
	"walk":     "산책",
	"photo":    "포토 스팟",
	"sea":      "바다 포토 스팟",
	"hotplace": "핫플",
}

// SearchQuery builds the blog-search query for kind and place: "{place} {suffix}".
func SearchQuery(kind, place string) (string, bool) {
	suffix, ok := querySuffix[kind]
	if !ok {
		return "", false
	}
	return place + " " + suffix, true
}

// RecommendationService looks up blog posts for a place. It has no cache: every
// call goes to the searcher.
type RecommendationService struct {
	searcher client.BlogSearcher
	logger   *zap.Logger
}

// NewRecommendationService creates a RecommendationService over searcher.
func NewRecommendationService(searcher client.BlogSearcher, logger *zap.Logger) *RecommendationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecommendationService{searcher: searcher, logger: logger}
}

// Configured reports whether the searcher has credentials.
func (s *RecommendationService) Configured() bool {
	return s.searcher.Configured()
}

// Recommend returns blog posts for place and kind. Kind must be one of walk,
// photo, sea or hotplace; place must already be validated.
func (s *RecommendationService) Recommend(ctx context.Context, kind, place string) ([]models.BlogPost, error) {
	query, ok := SearchQuery(kind, place)
	if !ok {
		return nil, fmt.Errorf("recommend: unknown kind %q", kind)
	}
	logger := observability.LoggerFromContext(ctx)
	if logger == nil {
		logger = s.logger
	}
	observability.RecordBlogSearch(kind, place)

	posts, err := s.searcher.SearchBlogs(ctx, query)
	if err != nil {
		logger.Warn("blog search failed",
			zap.String("kind", kind),
			zap.String("category", string(client.CategorizeError(err))),
			zap.Error(err))
		return nil, fmt.Errorf("recommend %s: %w", kind, err)
	}
	logger.Debug("blog search served", zap.String("kind", kind), zap.Int("posts", len(posts)))
	return posts, nil
}
