package storage

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"finance-client/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// TokenTestSuite provides a test suite for token persistence
type TokenTestSuite struct {
	suite.Suite
	db  *DB
	ctx context.Context
}

// SetupTest runs before each test
func (suite *TokenTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.ctx = context.Background()
}

// TearDownTest runs after each test
func (suite *TokenTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *TokenTestSuite) TestLoadEmpty() {
	tokens, err := suite.db.LoadTokens(suite.ctx)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), tokens.Empty())
}

func (suite *TokenTestSuite) TestSaveAndLoad() {
	err := suite.db.SaveTokens(suite.ctx, models.TokenPair{AccessToken: "acc-1", RefreshToken: "ref-1"})
	require.NoError(suite.T(), err)

	tokens, err := suite.db.LoadTokens(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "acc-1", tokens.AccessToken)
	assert.Equal(suite.T(), "ref-1", tokens.RefreshToken)
}

func (suite *TokenTestSuite) TestSaveOverwrites() {
	require.NoError(suite.T(), suite.db.SaveTokens(suite.ctx, models.TokenPair{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(suite.T(), suite.db.SaveTokens(suite.ctx, models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}))

	tokens, err := suite.db.LoadTokens(suite.ctx)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, tokens)
}

func (suite *TokenTestSuite) TestClearRemovesBoth() {
	require.NoError(suite.T(), suite.db.SaveTokens(suite.ctx, models.TokenPair{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(suite.T(), suite.db.ClearTokens(suite.ctx))

	tokens, err := suite.db.LoadTokens(suite.ctx)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), tokens.Empty())
	assert.Empty(suite.T(), tokens.RefreshToken)

	// Clearing twice is harmless
	assert.NoError(suite.T(), suite.db.ClearTokens(suite.ctx))
}

func (suite *TokenTestSuite) TestHalfPairReadsAsEmpty() {
	_, err := suite.db.conn.Exec("INSERT INTO kv (key, value) VALUES (?, ?)", AccessTokenKey, "orphan")
	require.NoError(suite.T(), err)

	tokens, err := suite.db.LoadTokens(suite.ctx)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), tokens.Empty(), "a lone access token must not be used")
}

func (suite *TokenTestSuite) TestCookiesRoundTrip() {
	scope := "http://localhost:5000"
	err := suite.db.SaveCookies(suite.ctx, scope, []*http.Cookie{
		{Name: "session", Value: "abc"},
		{Name: "csrf", Value: "xyz"},
	})
	require.NoError(suite.T(), err)

	cookies, err := suite.db.LoadCookies(suite.ctx, scope)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), cookies, 2)
	assert.Equal(suite.T(), "csrf", cookies[0].Name)
	assert.Equal(suite.T(), "session", cookies[1].Name)
	assert.Equal(suite.T(), "abc", cookies[1].Value)

	// Saving replaces the whole set
	err = suite.db.SaveCookies(suite.ctx, scope, []*http.Cookie{{Name: "session", Value: "def"}})
	require.NoError(suite.T(), err)
	cookies, err = suite.db.LoadCookies(suite.ctx, scope)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), cookies, 1)
	assert.Equal(suite.T(), "def", cookies[0].Value)

	// Other scopes are untouched
	other, err := suite.db.LoadCookies(suite.ctx, "http://elsewhere")
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), other)

	require.NoError(suite.T(), suite.db.ClearCookies(suite.ctx, scope))
	cookies, err = suite.db.LoadCookies(suite.ctx, scope)
	require.NoError(suite.T(), err)
	assert.Empty(suite.T(), cookies)
}

func (suite *TokenTestSuite) TestCookieExpiry() {
	scope := "http://localhost:5000"
	later := time.Now().Add(time.Hour).Truncate(time.Second)
	err := suite.db.SaveCookies(suite.ctx, scope, []*http.Cookie{
		{Name: "session", Value: "live", Expires: later},
		{Name: "old", Value: "gone", Expires: time.Now().Add(-time.Hour)},
		{Name: "tab", Value: "kept"},
	})
	require.NoError(suite.T(), err)

	cookies, err := suite.db.LoadCookies(suite.ctx, scope)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), cookies, 2)
	assert.Equal(suite.T(), "session", cookies[0].Name)
	assert.True(suite.T(), later.Equal(cookies[0].Expires))
	assert.Equal(suite.T(), "tab", cookies[1].Name)
	assert.True(suite.T(), cookies[1].Expires.IsZero())

	var rows int
	require.NoError(suite.T(), suite.db.conn.QueryRow("SELECT COUNT(*) FROM cookies WHERE name = 'old'").Scan(&rows))
	assert.Zero(suite.T(), rows, "expired rows are dropped on load")
}

func TestTokenTestSuite(t *testing.T) {
	suite.Run(t, new(TokenTestSuite))
}

func TestTokensSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	db, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveTokens(ctx, models.TokenPair{AccessToken: "persist", RefreshToken: "me"}))
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	tokens, err := db.LoadTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persist", tokens.AccessToken)
}

func TestNewDB_InvalidPath(t *testing.T) {
	// A directory cannot be opened as a database file
	_, err := NewDB(t.TempDir())
	assert.Error(t, err)
}
