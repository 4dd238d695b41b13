package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHonorsContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New().Get(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// The client timeout is 8s; the context has to be what cut this short.
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestPostFormEncodesFields(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.FormValue("username")
		w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	body, err := New().PostForm(context.Background(), srv.URL, map[string]string{"username": "admin"})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, "admin", got)
}

func TestNon2xxReturnsBodyWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"User not found"}`))
	}))
	t.Cleanup(srv.Close)

	body, err := New().Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Contains(t, string(body), "User not found")
}
