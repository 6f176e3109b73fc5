package platform

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, srv *httptest.Server, rpm int64) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Host:              srv.URL,
		APIKey:            "moltbook_sk_test",
		AgentName:         "guardbot",
		RequestsPerMinute: rpm,
		HTTPClient:        srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestNewClientValidatesKey(t *testing.T) {
	_, err := NewClient(Config{APIKey: "sk-not-platform"})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	_, err = NewClient(Config{APIKey: ""})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestFetchPosts(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/posts", r.URL.Path)
		assert.Equal("Bearer moltbook_sk_test", r.Header.Get("Authorization"))
		assert.Equal("general", r.URL.Query().Get("submolt"))
		assert.Equal("new", r.URL.Query().Get("sort"))
		assert.Equal("25", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"posts": [
			{"id": "p1", "title": "Hello", "content": "world", "author": {"name": "alice"}, "submolt": {"name": "general"}, "karma": 4, "comment_count": 2},
			{"id": "p2", "title": "Link", "url": "https://example.com", "author_name": "bob", "score": 9, "comments": 1}
		]}`))
	}))
	defer srv.Close()

	posts, err := testClient(t, srv, 0).FetchPosts(context.Background(), "m/general", "new", 25)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal("p1", posts[0].ID)
	assert.Equal("alice", posts[0].Author)
	assert.Equal("general", posts[0].Community)
	assert.Equal(4, posts[0].Karma)
	assert.Equal(2, posts[0].CommentCount)
	assert.Equal("Hello\n\nworld", posts[0].Text())

	assert.Equal("bob", posts[1].Author)
	assert.Equal("general", posts[1].Community)
	assert.Equal(9, posts[1].Karma)
	assert.Equal(1, posts[1].CommentCount)
	assert.Equal("https://example.com", posts[1].URL)
	assert.Equal("Link", posts[1].Text())
}

func TestCreateComment(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("/posts/p1/comments", r.URL.Path)
		assert.Equal("application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		assert.NoError(json.NewDecoder(r.Body).Decode(&body))
		assert.Equal("nice post", body["content"])
		_, _ = w.Write([]byte(`{"comment": {"id": "c1"}}`))
	}))
	defer srv.Close()

	c, err := testClient(t, srv, 0).CreateComment(context.Background(), "p1", "nice post")
	require.NoError(t, err)
	assert.Equal("c1", c.ID)
	assert.Equal("p1", c.PostID)
	assert.Equal("nice post", c.Content)
	assert.Equal("guardbot", c.Author)
}

func TestCreatePost(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(json.NewDecoder(r.Body).Decode(&body))
		assert.Equal("general", body["submolt"])
		assert.Equal("A title", body["title"])
		_, _ = w.Write([]byte(`{"id": "p9"}`))
	}))
	defer srv.Close()

	p, err := testClient(t, srv, 0).CreatePost(context.Background(), "m/general", "A title", "body text")
	require.NoError(t, err)
	assert.Equal("p9", p.ID)
	assert.Equal("general", p.Community)
	assert.Equal("body text", p.Content)
}

func TestRateLimitedResponse(t *testing.T) {
	assert := assert.New(t)

	testCases := []struct {
		body   string
		header string
		want   time.Duration
	}{
		{`{"retry_after_seconds": 45}`, "", 45 * time.Second},
		{`{"retry_after_minutes": 2}`, "", 2 * time.Minute},
		{`{}`, "30", 30 * time.Second},
		{`not json`, "", defaultRetryAfter},
	}

	for _, tc := range testCases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tc.header != "" {
				w.Header().Set("Retry-After", tc.header)
			}
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(tc.body))
		}))

		_, err := testClient(t, srv, 0).CreateComment(context.Background(), "p1", "x")
		rle, ok := IsRateLimited(err)
		assert.True(ok, tc.body)
		if ok {
			assert.Equal(tc.want, rle.RetryAfter, tc.body)
			assert.False(rle.Local)
		}
		srv.Close()
	}
}

func TestPlatformError(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": "agent not claimed", "hint": "claim your agent first"}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv, 0).GetKarma(context.Background())
	var pe *PlatformError
	require.True(t, errors.As(err, &pe))
	assert.Equal(http.StatusForbidden, pe.StatusCode)
	assert.Equal("agent not claimed", pe.Message)
	assert.Equal("claim your agent first", pe.Hint)
	assert.Contains(err.Error(), "hint")

	_, ok := IsRateLimited(err)
	assert.False(ok)
}

func TestGetKarma(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/me", r.URL.Path)
		_, _ = w.Write([]byte(`{"agent": {"name": "guardbot", "karma": 123}}`))
	}))
	defer srv.Close()

	karma, err := testClient(t, srv, 0).GetKarma(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 123, karma)
}

func TestLocalThrottle(t *testing.T) {
	assert := assert.New(t)
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"posts": []}`))
	}))
	defer srv.Close()

	c := testClient(t, srv, 2)
	ctx := context.Background()
	_, err := c.FetchPosts(ctx, "general", "", 0)
	assert.NoError(err)
	_, err = c.FetchPosts(ctx, "general", "", 0)
	assert.NoError(err)

	_, err = c.FetchPosts(ctx, "general", "", 0)
	rle, ok := IsRateLimited(err)
	assert.True(ok)
	assert.True(rle.Local)
	assert.Equal(30*time.Second, rle.RetryAfter)
	assert.Equal(2, hits)
}

func TestCommunityName(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("general", CommunityName("m/general"))
	assert.Equal("general", CommunityName(" general "))
	assert.Equal("", CommunityName(""))
}
