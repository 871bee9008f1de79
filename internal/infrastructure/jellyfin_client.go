package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/mediahub-go/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	userAgent        = "MediaHub/1.0"
	includeItemTypes = "Movie,Series,Episode"
	itemFields       = "Overview,Genres,Path,Etag,ProductionYear,RunTimeTicks,ImageTags,SeriesName,SeriesPrimaryImageTag,ParentIndexNumber,IndexNumber"
)

// ServerInfo is the subset of /System/Info we keep
type ServerInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

// JellyfinClient implements RemoteCatalogClient against a Jellyfin server
type JellyfinClient struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client
	// streamClient has no overall timeout; transfers can run for hours.
	// Stalls are bounded by idleTimeout between body reads instead.
	streamClient *http.Client
	idleTimeout  time.Duration
	limiter      *rate.Limiter
	logger       *zap.Logger

	mu   sync.Mutex
	info *ServerInfo
}

// NewJellyfinClient creates a client from the remote section of the config
func NewJellyfinClient(cfg domain.RemoteConfig, logger *zap.Logger) *JellyfinClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &JellyfinClient{
		baseURL:    strings.TrimRight(cfg.ServerURL, "/"),
		apiKey:     cfg.APIKey,
		userID:     cfg.UserID,
		httpClient: &http.Client{Timeout: timeout},
		streamClient: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
		idleTimeout: timeout,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
	}
}

// doRequest performs an authenticated GET and returns the body on 200
func (c *JellyfinClient) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, domain.ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if query != nil {
		reqURL = reqURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	c.logger.Debug("jellyfin request", zap.String("path", path))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	if err := c.checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (c *JellyfinClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("User-Agent", userAgent)
}

// checkStatus maps non-2xx responses onto domain errors
func (c *JellyfinClient) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.clearAuthState()
		return domain.ErrAuthFailed
	case resp.StatusCode == http.StatusForbidden:
		return domain.ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrRemoteNotFound
	case resp.StatusCode >= 400:
		statusErr := &domain.HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
		}
		if isJSON(resp.Header.Get("Content-Type")) {
			var payload struct {
				Message string `json:"message"`
			}
			if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload) == nil {
				statusErr.Message = payload.Message
			}
		}
		return statusErr
	}
	return nil
}

func (c *JellyfinClient) clearAuthState() {
	c.mu.Lock()
	c.info = nil
	c.mu.Unlock()
	c.logger.Warn("jellyfin rejected credentials, cleared cached server info")
}

// TestConnection fetches server info and caches it until the next auth failure
func (c *JellyfinClient) TestConnection(ctx context.Context) (*ServerInfo, error) {
	c.mu.Lock()
	cached := c.info
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	body, err := c.doRequest(ctx, "/System/Info", nil)
	if err != nil {
		return nil, err
	}
	var info ServerInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse server info: %w", err)
	}

	c.mu.Lock()
	c.info = &info
	c.mu.Unlock()
	return &info, nil
}

// FetchPage returns one page of movies, series and episodes
func (c *JellyfinClient) FetchPage(ctx context.Context, offset, limit int) (*domain.RemotePage, error) {
	if c.userID == "" {
		return nil, domain.ErrNotConfigured
	}
	query := url.Values{}
	query.Set("IncludeItemTypes", includeItemTypes)
	query.Set("Recursive", "true")
	query.Set("Fields", itemFields)
	query.Set("SortBy", "SortName")
	query.Set("SortOrder", "Ascending")
	query.Set("StartIndex", strconv.Itoa(offset))
	query.Set("Limit", strconv.Itoa(limit))

	body, err := c.doRequest(ctx, fmt.Sprintf("/Users/%s/Items", url.PathEscape(c.userID)), query)
	if err != nil {
		return nil, err
	}

	var page domain.RemotePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse items page: %w", err)
	}
	return &page, nil
}

// ImageURL builds an authenticated image URL
func (c *JellyfinClient) ImageURL(itemID, imageType, tag string) string {
	u := fmt.Sprintf("%s/Items/%s/Images/%s", c.baseURL, url.PathEscape(itemID), imageType)
	q := url.Values{}
	if tag != "" {
		q.Set("tag", tag)
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}

// OpenDownload opens the original file stream of an item. The caller owns Body.
func (c *JellyfinClient) OpenDownload(ctx context.Context, remoteID string) (*domain.TransferStream, error) {
	if c.baseURL == "" || c.apiKey == "" {
		return nil, domain.ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	reqURL := fmt.Sprintf("%s/Items/%s/Download", c.baseURL, url.PathEscape(remoteID))
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Del("Accept")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}

	if err := c.checkStatus(resp); err != nil {
		cancel()
		resp.Body.Close()
		c.logger.Error("download request rejected",
			zap.String("remote_id", remoteID),
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if isJSON(contentType) {
		defer cancel()
		defer resp.Body.Close()
		var payload struct {
			Message string `json:"message"`
		}
		msg := "Unexpected JSON response for download"
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload) == nil && payload.Message != "" {
			msg = payload.Message
		}
		return nil, &domain.UnexpectedContentError{Message: msg}
	}

	return &domain.TransferStream{
		Body:          newIdleTimeoutBody(resp.Body, c.idleTimeout, cancel),
		ContentLength: resp.ContentLength,
		ContentType:   contentType,
	}, nil
}

// idleTimeoutBody cancels the request when no bytes arrive for timeout
type idleTimeoutBody struct {
	body    io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	stalled atomic.Bool
}

func newIdleTimeoutBody(body io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *idleTimeoutBody {
	b := &idleTimeoutBody{body: body, timeout: timeout, cancel: cancel}
	b.timer = time.AfterFunc(timeout, func() {
		b.stalled.Store(true)
		cancel()
	})
	return b
}

func (b *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if b.stalled.Load() {
		return n, fmt.Errorf("%w: no data received for %v", domain.ErrServerOffline, b.timeout)
	}
	if n > 0 {
		b.timer.Reset(b.timeout)
	}
	return n, err
}

func (b *idleTimeoutBody) Close() error {
	b.timer.Stop()
	b.cancel()
	return b.body.Close()
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}
