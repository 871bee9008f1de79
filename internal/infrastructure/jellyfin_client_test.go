package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/mediahub-go/internal/domain"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *JellyfinClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewJellyfinClient(domain.RemoteConfig{
		ServerURL: srv.URL,
		APIKey:    "secret",
		UserID:    "user1",
	}, zap.NewNop())
}

func TestFetchPage_SendsPagingAndToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Users/user1/Items", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Emby-Token"))
		assert.Equal(t, "Movie,Series,Episode", r.URL.Query().Get("IncludeItemTypes"))
		assert.Equal(t, "400", r.URL.Query().Get("StartIndex"))
		assert.Equal(t, "200", r.URL.Query().Get("Limit"))
		json.NewEncoder(w).Encode(domain.RemotePage{
			Items:            []domain.RemoteItem{{ID: "abc", Name: "Inception", Type: "Movie"}},
			TotalRecordCount: 401,
		})
	})

	page, err := client.FetchPage(context.Background(), 400, 200)
	require.NoError(t, err)
	assert.Equal(t, 401, page.TotalRecordCount)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Inception", page.Items[0].Name)
}

func TestFetchPage_MapsStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrAuthFailed},
		{http.StatusForbidden, domain.ErrForbidden},
		{http.StatusNotFound, domain.ErrRemoteNotFound},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := client.FetchPage(context.Background(), 0, 10)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetchPage_ServerErrorCarriesMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"database locked"}`))
	})

	_, err := client.FetchPage(context.Background(), 0, 10)
	var statusErr *domain.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, "Server error: database locked", statusErr.Error())
}

func TestFetchPage_Offline(t *testing.T) {
	client := NewJellyfinClient(domain.RemoteConfig{
		ServerURL: "http://127.0.0.1:1",
		APIKey:    "k",
		UserID:    "u",
	}, zap.NewNop())

	_, err := client.FetchPage(context.Background(), 0, 10)
	assert.ErrorIs(t, err, domain.ErrServerOffline)
}

func TestFetchPage_NotConfigured(t *testing.T) {
	client := NewJellyfinClient(domain.RemoteConfig{}, zap.NewNop())
	_, err := client.FetchPage(context.Background(), 0, 10)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestImageURL(t *testing.T) {
	client := NewJellyfinClient(domain.RemoteConfig{ServerURL: "http://jf:8096/", APIKey: "k"}, zap.NewNop())
	assert.Equal(t, "http://jf:8096/Items/abc/Images/Primary?api_key=k&tag=t1", client.ImageURL("abc", "Primary", "t1"))
}

func TestOpenDownload_StreamsBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Items/abc/Download", r.URL.Path)
		w.Header().Set("Content-Type", "video/mp4")
		w.Write(make([]byte, 1000))
	})

	stream, err := client.OpenDownload(context.Background(), "abc")
	require.NoError(t, err)
	defer stream.Body.Close()

	data, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Len(t, data, 1000)
	assert.Equal(t, int64(1000), stream.ContentLength)
}

func TestOpenDownload_StalledBodyTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("abc"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	client := NewJellyfinClient(domain.RemoteConfig{
		ServerURL:      srv.URL,
		APIKey:         "secret",
		RequestTimeout: 200 * time.Millisecond,
	}, zap.NewNop())

	stream, err := client.OpenDownload(context.Background(), "abc")
	require.NoError(t, err)
	defer stream.Body.Close()

	start := time.Now()
	data, err := io.ReadAll(stream.Body)
	assert.Equal(t, "abc", string(data))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrServerOffline)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestOpenDownload_SteadyBodyOutlivesIdleTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		for i := 0; i < 5; i++ {
			w.Write([]byte("chunk"))
			w.(http.Flusher).Flush()
			time.Sleep(50 * time.Millisecond)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewJellyfinClient(domain.RemoteConfig{
		ServerURL:      srv.URL,
		APIKey:         "secret",
		RequestTimeout: 150 * time.Millisecond,
	}, zap.NewNop())

	stream, err := client.OpenDownload(context.Background(), "abc")
	require.NoError(t, err)
	defer stream.Body.Close()

	data, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, 25, len(data))
}

func TestOpenDownload_RejectsJSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"message":"transcoding required"}`))
	})

	_, err := client.OpenDownload(context.Background(), "abc")
	var contentErr *domain.UnexpectedContentError
	require.True(t, errors.As(err, &contentErr))
	assert.Equal(t, "transcoding required", contentErr.Message)
}

func TestTestConnection_CachesUntilAuthFailure(t *testing.T) {
	var calls atomic.Int32
	var unauthorized atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if unauthorized.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/System/Info" {
			calls.Add(1)
			w.Write([]byte(`{"ServerName":"home","Version":"10.9.0","Id":"srv"}`))
			return
		}
		w.Write([]byte(`{"Items":[],"TotalRecordCount":0}`))
	})

	info, err := client.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "home", info.ServerName)
	_, err = client.TestConnection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	unauthorized.Store(true)
	_, err = client.FetchPage(context.Background(), 0, 1)
	assert.ErrorIs(t, err, domain.ErrAuthFailed)

	_, err = client.TestConnection(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
}
