package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCookieStore struct {
	mu      sync.Mutex
	cookies map[string][]*http.Cookie
}

func newMemCookieStore() *memCookieStore {
	return &memCookieStore{cookies: map[string][]*http.Cookie{}}
}

func (m *memCookieStore) SaveCookies(_ context.Context, scope string, cookies []*http.Cookie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies[scope] = cookies
	return nil
}

func (m *memCookieStore) LoadCookies(_ context.Context, scope string) ([]*http.Cookie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cookies[scope], nil
}

func (m *memCookieStore) ClearCookies(_ context.Context, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cookies, scope)
	return nil
}

func TestPersistentJar_SurvivesNewClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathDatabaseConnect:
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "db-42", Path: "/"})
			writeJSON(w, http.StatusOK, map[string]any{"connected": true})
		case PathDatabaseStatus:
			c, err := r.Cookie("session")
			writeJSON(w, http.StatusOK, map[string]any{"connected": err == nil && c.Value == "db-42"})
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	store := newMemCookieStore()

	jar, err := NewPersistentJar(ctx, srv.URL, store)
	require.NoError(t, err)
	first, err := NewClient(srv.URL, WithCookieJar(jar))
	require.NoError(t, err)

	_, err = first.Connect(ctx, testCreds())
	require.NoError(t, err)

	// A second process starts from storage only
	jar2, err := NewPersistentJar(ctx, srv.URL, store)
	require.NoError(t, err)
	second, err := NewClient(srv.URL, WithCookieJar(jar2))
	require.NoError(t, err)

	status, err := second.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Connected)

	require.NoError(t, second.ClearCookies(ctx))
	status, err = second.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Connected)

	saved, err := store.LoadCookies(ctx, jar2.scope())
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestPersistentJar_KeepsExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "db-42", Path: "/", MaxAge: 3600})
		writeJSON(w, http.StatusOK, map[string]any{"connected": true})
	}))
	defer srv.Close()

	ctx := context.Background()
	store := newMemCookieStore()
	jar, err := NewPersistentJar(ctx, srv.URL, store)
	require.NoError(t, err)
	client, err := NewClient(srv.URL, WithCookieJar(jar))
	require.NoError(t, err)

	_, err = client.Connect(ctx, testCreds())
	require.NoError(t, err)

	saved, err := store.LoadCookies(ctx, jar.scope())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.WithinDuration(t, time.Now().Add(time.Hour), saved[0].Expires, time.Minute)
}

func TestPersistentJar_DropsExpiredCookies(t *testing.T) {
	ctx := context.Background()
	base := "http://localhost:5000"
	store := newMemCookieStore()
	require.NoError(t, store.SaveCookies(ctx, base, []*http.Cookie{
		{Name: "session", Value: "stale", Expires: time.Now().Add(-time.Minute)},
		{Name: "tab", Value: "kept"},
	}))

	jar, err := NewPersistentJar(ctx, base, store)
	require.NoError(t, err)

	cookies := jar.Cookies(jar.base)
	require.Len(t, cookies, 1)
	assert.Equal(t, "tab", cookies[0].Name)
}
