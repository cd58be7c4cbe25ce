package session

import (
	"errors"
	"fmt"
	"strings"

	"finance-client/internal/models"
)

// State is the connectivity/authentication state of the client.
type State int

const (
	// Disconnected: no data link, no user.
	Disconnected State = iota
	// ConnectedUnauthenticated: data link present, no valid session.
	ConnectedUnauthenticated
	// AuthLoading: a stored token is being resolved against the backend.
	AuthLoading
	// Authenticated: data link present and a user session is held.
	Authenticated
	// Disconnecting: a disconnect is in flight.
	Disconnecting
	// LoggingOut: a logout is in flight.
	LoggingOut
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case ConnectedUnauthenticated:
		return "ConnectedUnauthenticated"
	case AuthLoading:
		return "AuthLoading"
	case Authenticated:
		return "Authenticated"
	case Disconnecting:
		return "Disconnecting"
	case LoggingOut:
		return "LoggingOut"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Transient reports whether s only exists while an operation is in flight.
func (s State) Transient() bool {
	return s == AuthLoading || s == Disconnecting || s == LoggingOut
}

var (
	// ErrIllegalTransition is matched by every TransitionError.
	ErrIllegalTransition = errors.New("illegal state transition")
	// ErrNotAuthenticated is returned by RequireAuthenticated.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// TransitionError reports an operation invoked from a state it does not
// accept.
type TransitionError struct {
	Op      string
	From    State
	Allowed []State
}

func (e *TransitionError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		allowed[i] = s.String()
	}
	return fmt.Sprintf("%s: not allowed in state %s (requires %s)", e.Op, e.From, strings.Join(allowed, " or "))
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// Session pairs a user identity with its bearer credential. User is only
// set while Tokens is non-empty.
type Session struct {
	User   *models.User
	Tokens models.TokenPair
}

// Snapshot is a point-in-time copy of the controller's state.
type Snapshot struct {
	State      State
	Connection models.ConnectionStatus
	User       *models.User
	HasTokens  bool
}

// Screen paths.
const (
	LoginPath           = "/login"
	DatabaseConnectPath = "/db-connect"
	DashboardPath       = "/dashboard"

	// legacyDatabaseConnectPath is the older name of the connect screen.
	legacyDatabaseConnectPath = "/database-connection"
)

// RouteFor returns where a protected screen must redirect to, or "" when
// the snapshot may see it.
func RouteFor(s Snapshot) string {
	switch {
	case !s.Connection.Connected:
		return DatabaseConnectPath
	case s.State != Authenticated || s.User == nil:
		return LoginPath
	default:
		return ""
	}
}

func onAuthScreen(location string) bool {
	for _, p := range []string{LoginPath, DatabaseConnectPath, legacyDatabaseConnectPath} {
		if strings.HasPrefix(location, p) {
			return true
		}
	}
	return false
}
