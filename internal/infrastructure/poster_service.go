package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	tmdb "github.com/ryanbradynd05/go-tmdb"
	"github.com/yourusername/mediahub-go/internal/domain"
	"github.com/yourusername/mediahub-go/internal/media"
	"go.uber.org/zap"
)

const tmdbImageBase = "https://image.tmdb.org/t/p/w500"

// ErrNoPoster is returned when no poster source is known for an item
var ErrNoPoster = errors.New("no poster available")

// TMDBClient interface for testing (matches *tmdb.TMDb)
type TMDBClient interface {
	SearchMovie(name string, options map[string]string) (*tmdb.MovieSearchResults, error)
	SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error)
}

// PosterService writes companion posters next to media files
type PosterService struct {
	config     domain.PosterConfig
	tmdb       TMDBClient
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPosterService creates a poster service; TMDB is only used when an API key is set
func NewPosterService(config domain.PosterConfig, logger *zap.Logger) *PosterService {
	s := &PosterService{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		logger:     logger,
	}
	if config.TMDBAPIKey != "" {
		s.tmdb = tmdb.Init(tmdb.Config{
			APIKey:   config.TMDBAPIKey,
			Proxies:  nil,
			UseProxy: false,
		})
	}
	return s
}

// SetClient replaces the TMDB client
func (s *PosterService) SetClient(client TMDBClient) {
	s.tmdb = client
}

// ExistingPoster returns a companion poster already on disk for mediaPath
func ExistingPoster(mediaPath string) (string, bool) {
	for _, candidate := range media.PosterCandidates(mediaPath) {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// FetchCompanionPoster stores <name>-poster<ext> beside mediaPath. imageURL is
// preferred; without it TMDB is searched by title and year.
func (s *PosterService) FetchCompanionPoster(ctx context.Context, mediaPath, imageURL, title string, year int, kind domain.MediaKind) (string, error) {
	if !s.config.Enabled {
		return "", nil
	}
	if existing, ok := ExistingPoster(mediaPath); ok {
		s.logger.Debug("poster already present", zap.String("path", existing))
		return existing, nil
	}

	url := imageURL
	if url == "" {
		found, err := s.searchTMDB(title, year, kind)
		if err != nil {
			return "", err
		}
		url = found
	}

	stem := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	base := filepath.Join(filepath.Dir(mediaPath), stem+"-poster")
	path, err := downloadImage(ctx, s.httpClient, url, base)
	if err != nil {
		return "", err
	}
	s.logger.Info("saved poster", zap.String("media", mediaPath), zap.String("poster", path))
	return path, nil
}

func (s *PosterService) searchTMDB(title string, year int, kind domain.MediaKind) (string, error) {
	if s.tmdb == nil || title == "" {
		return "", ErrNoPoster
	}
	options := map[string]string{"language": s.config.Language}

	var posterPath string
	if kind == domain.KindMovie {
		if year > 0 {
			options["year"] = strconv.Itoa(year)
		}
		results, err := s.tmdb.SearchMovie(title, options)
		if err != nil {
			return "", fmt.Errorf("tmdb movie search failed: %w", err)
		}
		if results == nil || len(results.Results) == 0 {
			return "", ErrNoPoster
		}
		posterPath = results.Results[0].PosterPath
	} else {
		results, err := s.tmdb.SearchTv(title, options)
		if err != nil {
			return "", fmt.Errorf("tmdb tv search failed: %w", err)
		}
		if results == nil || len(results.Results) == 0 {
			return "", ErrNoPoster
		}
		posterPath = results.Results[0].PosterPath
	}

	if posterPath == "" {
		return "", ErrNoPoster
	}
	return tmdbImageBase + posterPath, nil
}
