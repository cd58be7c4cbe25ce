// Package session owns the client's connectivity and authentication state.
// Every transition goes through Controller, which serializes mutating
// operations and collapses concurrent duplicates of the same operation into
// a single backend call.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"finance-client/internal/api"
	"finance-client/internal/models"
)

// TokenStore persists the bearer credential across restarts.
type TokenStore interface {
	SaveTokens(ctx context.Context, tokens models.TokenPair) error
	LoadTokens(ctx context.Context) (models.TokenPair, error)
	ClearTokens(ctx context.Context) error
}

// Backend is the subset of the HTTP client the controller drives.
type Backend interface {
	SetAuthenticator(a api.Authenticator)
	TestConnection(ctx context.Context, creds models.DatabaseCredentials) (*models.ConnectionTestResult, error)
	Connect(ctx context.Context, creds models.DatabaseCredentials) (*models.ConnectionStatus, error)
	Disconnect(ctx context.Context) error
	Status(ctx context.Context) (*models.ConnectionStatus, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*models.User, error)
	ClearCookies(ctx context.Context) error
}

// ErrConnectFailed is returned when the backend answers a connect request
// without establishing the link.
var ErrConnectFailed = errors.New("failed to connect to database")

// Controller is the single owner of session state. It implements
// api.Authenticator for the Backend it is created with.
type Controller struct {
	backend Backend
	store   TokenStore
	nav     Navigator

	flights singleflight.Group
	// opMu serializes mutating operations with different keys.
	opMu sync.Mutex
	// navMu makes the check-then-navigate on 401 atomic.
	navMu sync.Mutex

	// storeMu orders writes to the token store; it is taken before mu.
	storeMu sync.Mutex

	mu      sync.RWMutex
	state   State
	conn    models.ConnectionStatus
	session Session
	// epoch counts session replacements so a late store clear can tell it
	// has been overtaken.
	epoch uint64
}

// New returns a controller in the Disconnected state and installs it as the
// backend's authenticator. Call Init to restore persisted state.
func New(backend Backend, store TokenStore, nav Navigator) *Controller {
	c := &Controller{
		backend: backend,
		store:   store,
		nav:     nav,
		state:   Disconnected,
	}
	backend.SetAuthenticator(c)
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Snapshot{
		State:      c.state,
		Connection: c.conn,
		HasTokens:  !c.session.Tokens.Empty(),
	}
	if c.session.User != nil {
		u := *c.session.User
		s.User = &u
	}
	return s
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// RequireAuthenticated returns ErrNotAuthenticated unless a user session is
// held.
func (c *Controller) RequireAuthenticated() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != Authenticated || c.session.User == nil {
		return ErrNotAuthenticated
	}
	return nil
}

// AccessToken implements api.Authenticator.
func (c *Controller) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.Tokens.AccessToken
}

// Unauthorized implements api.Authenticator. A 401 for the token currently
// held tears the session down and sends the view to the login screen unless
// it is already on an auth screen. Rejections of a token that has since been
// replaced are ignored.
func (c *Controller) Unauthorized(path, token string) {
	c.mu.Lock()
	if token != c.session.Tokens.AccessToken {
		c.mu.Unlock()
		log.Printf("[SESSION] ignoring 401 from %s for a replaced token", path)
		return
	}
	epoch := c.clearSessionLocked()
	// Transient states are settled by the operation that owns them.
	if c.state == Authenticated {
		c.state = c.restingStateLocked()
	}
	c.mu.Unlock()

	c.forgetTokens(context.Background(), epoch)
	log.Printf("[SESSION] 401 from %s, session cleared", path)
	c.redirectToLogin()
}

func (c *Controller) redirectToLogin() {
	if c.nav == nil {
		return
	}
	c.navMu.Lock()
	defer c.navMu.Unlock()
	if !onAuthScreen(c.nav.Location()) {
		c.nav.Navigate(LoginPath)
	}
}

// Init restores state at startup: it polls the data link, then resolves any
// persisted token into a user. Failures are logged and leave the controller
// in a resting state.
func (c *Controller) Init(ctx context.Context) error {
	_, err := c.flight("init", []State{Disconnected, ConnectedUnauthenticated}, func() (any, error) {
		if _, err := c.pollStatus(ctx); err != nil {
			log.Printf("[SESSION] status check failed: %v", err)
		}

		tokens, err := c.store.LoadTokens(ctx)
		if err != nil {
			log.Printf("[SESSION] loading stored tokens: %v", err)
			return nil, nil
		}
		if tokens.Empty() {
			return nil, nil
		}

		c.mu.Lock()
		c.session = Session{Tokens: tokens}
		c.epoch++
		c.state = AuthLoading
		c.mu.Unlock()

		user, err := c.backend.Profile(ctx)

		c.mu.Lock()
		var stale bool
		var epoch uint64
		switch {
		case err == nil && c.conn.Connected:
			c.session.User = user
			c.state = Authenticated
		case err == nil:
			// Token is good but there is no data link to use it with.
			c.session.User = nil
			c.state = Disconnected
		case api.IsUnauthorized(err):
			stale = true
			epoch = c.clearSessionLocked()
			c.state = c.restingStateLocked()
		default:
			log.Printf("[SESSION] loading profile: %v", err)
			c.session.User = nil
			c.state = c.restingStateLocked()
		}
		c.mu.Unlock()

		if stale {
			c.forgetTokens(ctx, epoch)
		}
		return nil, nil
	})
	return err
}

// TestConnection probes credentials without touching session state.
func (c *Controller) TestConnection(ctx context.Context, creds models.DatabaseCredentials) (*models.ConnectionTestResult, error) {
	if err := ValidateCredentials(&creds); err != nil {
		return nil, err
	}
	return c.backend.TestConnection(ctx, creds)
}

// ConnectDatabase establishes the data link.
func (c *Controller) ConnectDatabase(ctx context.Context, creds models.DatabaseCredentials) (*models.ConnectionStatus, error) {
	v, err := c.flight("connect", []State{Disconnected}, func() (any, error) {
		if err := ValidateCredentials(&creds); err != nil {
			return nil, err
		}

		status, err := c.backend.Connect(ctx, creds)
		if err != nil {
			return nil, err
		}
		if !status.Connected {
			if status.Message != "" {
				return nil, fmt.Errorf("%w: %s", ErrConnectFailed, status.Message)
			}
			return nil, ErrConnectFailed
		}

		conn := *status
		if conn.Database == "" {
			conn.Database = creds.Database
		}
		if conn.Host == "" {
			conn.Host = creds.Host
		}
		if conn.User == "" {
			conn.User = creds.User
		}
		if conn.Port == 0 {
			conn.Port = creds.Port
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.conn = conn
		if c.state == Disconnected {
			c.state = ConnectedUnauthenticated
		}
		return conn, nil
	})
	if err != nil {
		return nil, err
	}
	conn := v.(models.ConnectionStatus)
	return &conn, nil
}

// CheckDatabaseStatus polls the data link. Any failure is treated as
// disconnected.
func (c *Controller) CheckDatabaseStatus(ctx context.Context) (models.ConnectionStatus, error) {
	v, err, _ := c.flights.Do("status", func() (any, error) {
		return c.pollStatus(ctx)
	})
	status, _ := v.(models.ConnectionStatus)
	return status, err
}

func (c *Controller) pollStatus(ctx context.Context) (models.ConnectionStatus, error) {
	status, err := c.backend.Status(ctx)
	if err != nil {
		status = &models.ConnectionStatus{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !status.Connected {
		c.conn = models.ConnectionStatus{}
		switch c.state {
		case ConnectedUnauthenticated, Authenticated:
			c.session.User = nil
			c.state = Disconnected
		}
		return c.conn, err
	}

	conn := *status
	if conn.Database == c.conn.Database {
		if conn.Host == "" {
			conn.Host = c.conn.Host
		}
		if conn.User == "" {
			conn.User = c.conn.User
		}
		if conn.Port == 0 {
			conn.Port = c.conn.Port
		}
	}
	c.conn = conn
	if c.state == Disconnected {
		c.state = ConnectedUnauthenticated
	}
	return c.conn, nil
}

// Login authenticates with username (or email) and password.
func (c *Controller) Login(ctx context.Context, username, password string) (*models.User, error) {
	req := models.LoginRequest{Username: username, Password: password}
	return c.authenticate(ctx, "login", func() (*models.AuthResponse, error) {
		if err := ValidateLogin(req); err != nil {
			return nil, err
		}
		return c.backend.Login(ctx, req)
	})
}

// Register creates an account and signs in as it.
func (c *Controller) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	return c.authenticate(ctx, "register", func() (*models.AuthResponse, error) {
		if err := ValidateRegistration(req); err != nil {
			return nil, err
		}
		return c.backend.Register(ctx, req)
	})
}

func (c *Controller) authenticate(ctx context.Context, op string, call func() (*models.AuthResponse, error)) (*models.User, error) {
	v, err := c.flight(op, []State{ConnectedUnauthenticated}, func() (any, error) {
		resp, err := call()
		if err != nil {
			return nil, err
		}
		tokens := models.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
		if tokens.Empty() {
			return nil, fmt.Errorf("%s: response carried no access token", op)
		}

		c.storeMu.Lock()
		defer c.storeMu.Unlock()
		// The link may have dropped while the request was in flight.
		if err := c.require(op, ConnectedUnauthenticated); err != nil {
			return nil, err
		}
		if err := c.store.SaveTokens(ctx, tokens); err != nil {
			return nil, fmt.Errorf("%s: persist tokens: %w", op, err)
		}

		c.mu.Lock()
		if from := c.state; from != ConnectedUnauthenticated {
			c.mu.Unlock()
			if err := c.store.ClearTokens(ctx); err != nil {
				log.Printf("[SESSION] clearing stored tokens: %v", err)
			}
			return nil, &TransitionError{Op: op, From: from, Allowed: []State{ConnectedUnauthenticated}}
		}
		user := resp.User
		c.session = Session{User: &user, Tokens: tokens}
		c.epoch++
		c.state = Authenticated
		c.mu.Unlock()
		return user, nil
	})
	if err != nil {
		return nil, err
	}
	user := v.(models.User)
	return &user, nil
}

// Logout ends the user session. The local session is cleared even when the
// backend call fails.
func (c *Controller) Logout(ctx context.Context) error {
	_, err := c.flight("logout", []State{Authenticated}, func() (any, error) {
		if err := c.transitionTo("logout", LoggingOut, Authenticated); err != nil {
			return nil, err
		}
		if err := c.backend.Logout(ctx); err != nil {
			log.Printf("[SESSION] logout request failed: %v", err)
		}

		c.mu.Lock()
		epoch := c.clearSessionLocked()
		c.state = c.restingStateLocked()
		c.mu.Unlock()

		c.forgetTokens(ctx, epoch)
		return nil, nil
	})
	return err
}

// DisconnectDatabase drops the data link along with any user session. The
// local teardown happens even when the backend call fails.
func (c *Controller) DisconnectDatabase(ctx context.Context) error {
	_, err := c.flight("disconnect", []State{ConnectedUnauthenticated, Authenticated}, func() (any, error) {
		if err := c.transitionTo("disconnect", Disconnecting, ConnectedUnauthenticated, Authenticated); err != nil {
			return nil, err
		}
		if err := c.backend.Disconnect(ctx); err != nil {
			log.Printf("[SESSION] disconnect request failed: %v", err)
		}
		if err := c.backend.ClearCookies(ctx); err != nil {
			log.Printf("[SESSION] clearing cookies: %v", err)
		}

		c.mu.Lock()
		epoch := c.clearSessionLocked()
		c.conn = models.ConnectionStatus{}
		c.state = Disconnected
		c.mu.Unlock()

		c.forgetTokens(ctx, epoch)
		return nil, nil
	})
	return err
}

// flight runs fn once for all concurrent callers of op, holding opMu. The
// state must be one of allowed both on entry and once opMu is acquired.
func (c *Controller) flight(op string, allowed []State, fn func() (any, error)) (any, error) {
	if err := c.require(op, allowed...); err != nil {
		return nil, err
	}
	v, err, _ := c.flights.Do(op, func() (any, error) {
		c.opMu.Lock()
		defer c.opMu.Unlock()
		if err := c.require(op, allowed...); err != nil {
			return nil, err
		}
		return fn()
	})
	return v, err
}

func (c *Controller) require(op string, allowed ...State) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !slices.Contains(allowed, c.state) {
		return &TransitionError{Op: op, From: c.state, Allowed: allowed}
	}
	return nil
}

func (c *Controller) transitionTo(op string, next State, allowed ...State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(allowed, c.state) {
		return &TransitionError{Op: op, From: c.state, Allowed: allowed}
	}
	c.state = next
	return nil
}

func (c *Controller) restingStateLocked() State {
	if c.conn.Connected {
		return ConnectedUnauthenticated
	}
	return Disconnected
}

// clearSessionLocked drops the in-memory session. The returned epoch is
// passed to forgetTokens once mu is released.
func (c *Controller) clearSessionLocked() uint64 {
	c.session = Session{}
	c.epoch++
	return c.epoch
}

// forgetTokens clears the stored tokens unless a newer session has been
// installed since epoch. mu must not be held.
func (c *Controller) forgetTokens(ctx context.Context, epoch uint64) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	c.mu.RLock()
	current := c.epoch
	c.mu.RUnlock()
	if current != epoch {
		return
	}
	if err := c.store.ClearTokens(ctx); err != nil {
		log.Printf("[SESSION] clearing stored tokens: %v", err)
	}
}
