package session

import (
	"errors"
	"testing"

	"finance-client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteFor(t *testing.T) {
	user := &models.User{ID: 1, Username: "ana"}
	connected := models.ConnectionStatus{Connected: true, Database: "finance"}

	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{"disconnected", Snapshot{State: Disconnected}, DatabaseConnectPath},
		{"disconnected with stale tokens", Snapshot{State: Disconnected, HasTokens: true}, DatabaseConnectPath},
		{"connected without session", Snapshot{State: ConnectedUnauthenticated, Connection: connected}, LoginPath},
		{"resolving stored token", Snapshot{State: AuthLoading, Connection: connected, HasTokens: true}, LoginPath},
		{"authenticated", Snapshot{State: Authenticated, Connection: connected, User: user, HasTokens: true}, ""},
		{"logging out", Snapshot{State: LoggingOut, Connection: connected}, LoginPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RouteFor(tt.snap))
		})
	}
}

func TestOnAuthScreen(t *testing.T) {
	assert.True(t, onAuthScreen("/login"))
	assert.True(t, onAuthScreen("/db-connect"))
	assert.True(t, onAuthScreen("/database-connection"))
	assert.False(t, onAuthScreen("/dashboard"))
	assert.False(t, onAuthScreen("/"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ConnectedUnauthenticated", ConnectedUnauthenticated.String())
	assert.Equal(t, "State(42)", State(42).String())
	assert.True(t, LoggingOut.Transient())
	assert.False(t, Authenticated.Transient())
}

func TestTransitionError(t *testing.T) {
	err := error(&TransitionError{Op: "logout", From: Disconnected, Allowed: []State{Authenticated}})
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, "logout: not allowed in state Disconnected (requires Authenticated)", err.Error())
}

func TestRouter(t *testing.T) {
	r := NewRouter("/dashboard")
	r.Navigate(LoginPath)
	assert.Equal(t, LoginPath, r.Location())
	assert.Equal(t, 1, r.Navigations())
}

func TestValidateRegistration(t *testing.T) {
	valid := models.RegisterRequest{
		Username:        "ana",
		Email:           "ana@example.com",
		Password:        "hunter22",
		ConfirmPassword: "hunter22",
		FirstName:       "Ana",
		LastName:        "Diaz",
	}
	require.NoError(t, ValidateRegistration(valid))

	tests := []struct {
		name   string
		modify func(*models.RegisterRequest)
		field  string
		want   string
	}{
		{"missing username", func(r *models.RegisterRequest) { r.Username = "" }, "username", "Username is required"},
		{"bad email", func(r *models.RegisterRequest) { r.Email = "not-an-email" }, "email", "Invalid email format"},
		{"short password", func(r *models.RegisterRequest) { r.Password, r.ConfirmPassword = "abc", "abc" }, "password", "Password must be at least 6 characters"},
		{"mismatch", func(r *models.RegisterRequest) { r.ConfirmPassword = "hunter23" }, "confirm_password", "Passwords do not match"},
		{"missing last name", func(r *models.RegisterRequest) { r.LastName = "" }, "last_name", "Last name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.modify(&req)

			err := ValidateRegistration(req)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.field, verrs[0].Field)
			assert.Equal(t, tt.want, verrs[0].Message)
		})
	}
}

func TestValidateCredentials(t *testing.T) {
	creds := models.DatabaseCredentials{Host: "localhost", User: "u", Password: "p", Database: "finance"}
	require.NoError(t, ValidateCredentials(&creds))
	assert.Equal(t, models.DefaultDatabasePort, creds.Port)

	creds.Port = 70000
	err := ValidateCredentials(&creds)
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "Port must be at most 65535", verrs.Fields()["port"])

	empty := models.DatabaseCredentials{}
	err = ValidateCredentials(&empty)
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 4)
	assert.Equal(t, "Host is required; User is required; Password is required; Database is required", verrs.Error())
}
