package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"
)

// CookieStore persists cookies for one backend between process runs.
type CookieStore interface {
	SaveCookies(ctx context.Context, scope string, cookies []*http.Cookie) error
	LoadCookies(ctx context.Context, scope string) ([]*http.Cookie, error)
	ClearCookies(ctx context.Context, scope string) error
}

// PersistentJar is an http.CookieJar that mirrors the backend's cookies into
// a CookieStore. A nil store keeps cookies in memory only.
type PersistentJar struct {
	base  *url.URL
	store CookieStore

	mu  sync.Mutex
	jar *cookiejar.Jar
	// expires holds the absolute expiry of each backend cookie by name; the
	// zero time marks a session cookie. cookiejar does not report it back.
	expires map[string]time.Time
}

// NewPersistentJar creates a jar for baseURL seeded from store.
func NewPersistentJar(ctx context.Context, baseURL string, store CookieStore) (*PersistentJar, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	j := &PersistentJar{base: base, store: store, jar: jar, expires: map[string]time.Time{}}
	if store != nil {
		cookies, err := store.LoadCookies(ctx, j.scope())
		if err != nil {
			return nil, fmt.Errorf("load cookies: %w", err)
		}
		for _, c := range cookies {
			c.Path = "/"
			j.expires[c.Name] = c.Expires
		}
		jar.SetCookies(base, cookies)
	}
	return j, nil
}

func (j *PersistentJar) scope() string {
	return j.base.Scheme + "://" + j.base.Host
}

// SetCookies implements http.CookieJar.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)
	if u.Host != j.base.Host {
		return
	}
	now := time.Now()
	for _, c := range cookies {
		j.expires[c.Name] = expiry(c, now)
	}
	if j.store == nil {
		return
	}

	live := j.jar.Cookies(j.base)
	for _, c := range live {
		c.Expires = j.expires[c.Name]
	}
	if err := j.store.SaveCookies(context.Background(), j.scope(), live); err != nil {
		log.Printf("Failed to persist cookies: %v", err)
	}
}

// expiry resolves the absolute expiry of c, MaxAge taking precedence over
// Expires. Zero means a session cookie.
func expiry(c *http.Cookie, now time.Time) time.Time {
	switch {
	case c.MaxAge < 0:
		return now
	case c.MaxAge > 0:
		return now.Add(time.Duration(c.MaxAge) * time.Second)
	default:
		return c.Expires
	}
}

// Cookies implements http.CookieJar.
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops every cookie.
func (j *PersistentJar) Clear(ctx context.Context) error {
	fresh, err := cookiejar.New(nil)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar = fresh
	clear(j.expires)
	if j.store != nil {
		return j.store.ClearCookies(ctx, j.scope())
	}
	return nil
}
