package publish

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCredentials_Lookup(t *testing.T) {
	store := StaticCredentials{
		1: {Endpoint: "https://cms.example.com/posts", Username: "u", Token: "t"},
		2: {}, // present but unconfigured
	}

	creds, ok, err := store.Lookup(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://cms.example.com/posts", creds.Endpoint)

	_, ok, err = store.Lookup(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Lookup(context.Background(), 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRESTPublisher_Publish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "writer", user)
		assert.Equal(t, "secret", token)

		var post Post
		require.NoError(t, json.NewDecoder(r.Body).Decode(&post))
		assert.Equal(t, "Hello", post.Title)

		_ = json.NewEncoder(w).Encode(publishResponse{Link: "https://blog.example.com/hello"})
	}))
	defer srv.Close()

	p := NewRESTPublisher()
	result, err := p.Publish(context.Background(), Credentials{
		Endpoint: srv.URL, Username: "writer", Token: "secret",
	}, Post{Title: "Hello", Content: "<p>hi</p>"})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "https://blog.example.com/hello", result.PublishedLocation)
}

func TestRESTPublisher_EndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(publishResponse{Error: "bad token"})
	}))
	defer srv.Close()

	p := NewRESTPublisher()
	result, err := p.Publish(context.Background(), Credentials{Endpoint: srv.URL}, Post{Title: "x"})

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "bad token", result.Error)
}

func TestRESTPublisher_RequiresCredentials(t *testing.T) {
	p := NewRESTPublisher()
	_, err := p.Publish(context.Background(), Credentials{}, Post{Title: "x"})
	assert.Error(t, err)
}
