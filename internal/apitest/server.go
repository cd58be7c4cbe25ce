// Package apitest runs an in-process finance backend for tests. It speaks the
// same REST contract as the real service: a cookie-held database link, JWT
// bearer tokens for user calls, and JSON error bodies.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"finance-client/internal/models"
)

const (
	// LinkCookieName holds the database link id.
	LinkCookieName = "session"
	// LinkDuration is the lifetime of the link cookie.
	LinkDuration = 30 * 24 * time.Hour
)

// RequiredTables is the schema a database must carry to pass the probe.
var RequiredTables = []string{
	"Users", "Categories", "Accounts", "Transactions",
	"TransactionSplits", "Budgets", "FinancialGoals",
}

// Database is a reachable database fixture.
type Database struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
	Tables   []string
}

// DefaultDatabase is reachable with DefaultCredentials.
func DefaultDatabase() Database {
	return Database{
		Host:     "localhost",
		User:     "finance",
		Password: "secret",
		Name:     "finance",
		Port:     models.DefaultDatabasePort,
		Tables:   append([]string(nil), RequiredTables...),
	}
}

// DefaultCredentials connect to DefaultDatabase.
func DefaultCredentials() models.DatabaseCredentials {
	db := DefaultDatabase()
	return models.DatabaseCredentials{
		Host:     db.Host,
		User:     db.User,
		Password: db.Password,
		Database: db.Name,
		Port:     db.Port,
	}
}

type account struct {
	user         models.User
	passwordHash []byte
}

type failure struct {
	status  int
	message string
}

// Server is a fake backend bound to a local listener.
type Server struct {
	URL string

	srv    *httptest.Server
	secret []byte
	ttl    time.Duration

	mu          sync.Mutex
	databases   []Database
	links       map[string]Database
	users       map[int64]*account
	nextUserID  int64
	generation  int
	failures    map[string]failure
	holds       map[string]chan struct{}
	calls       map[string]int
	summary     models.DashboardSummary
	accounts    []models.Account
	recent      []models.Transaction
	budgets     []models.Budget
	goals       []models.FinancialGoal
	reports     map[[2]int][]byte
	omitUser    bool
}

// Option configures a Server.
type Option func(*Server)

// WithDatabase adds a reachable database.
func WithDatabase(db Database) Option {
	return func(s *Server) {
		s.databases = append(s.databases, db)
	}
}

// WithTokenTTL sets the access token lifetime.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Server) {
		s.ttl = d
	}
}

// New starts a server with DefaultDatabase reachable. It is closed when the
// test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		secret:     []byte("apitest-secret"),
		ttl:        time.Hour,
		databases:  []Database{DefaultDatabase()},
		links:      make(map[string]Database),
		users:      make(map[int64]*account),
		nextUserID: 1,
		failures:   make(map[string]failure),
		holds:      make(map[string]chan struct{}),
		calls:      make(map[string]int),
		reports:    make(map[[2]int][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	t.Cleanup(s.Close)
	return s
}

// Close shuts the listener down and releases any held requests.
func (s *Server) Close() {
	s.mu.Lock()
	for path, ch := range s.holds {
		close(ch)
		delete(s.holds, path)
	}
	s.mu.Unlock()
	s.srv.Close()
}

// AddUser registers an active user directly.
func (s *Server) AddUser(username, email, password string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.addUserLocked(username, email, password, "Test", "User")
	if err != nil {
		panic(err)
	}
	return u.user
}

func (s *Server) addUserLocked(username, email, password, first, last string) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	id := s.nextUserID
	s.nextUserID++
	a := &account{
		user: models.User{
			ID:          id,
			Username:    username,
			Email:       email,
			FirstName:   first,
			LastName:    last,
			DateCreated: time.Now().UTC().Format(time.RFC3339),
			IsActive:    true,
		},
		passwordHash: hash,
	}
	s.users[id] = a
	return a, nil
}

// Deactivate marks a user inactive; their logins are refused with 403.
func (s *Server) Deactivate(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.users[userID]; ok {
		a.user.IsActive = false
	}
}

// ExpireTokens invalidates every token issued so far.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

// DropLinks forgets every database link, as if the backend lost its
// connection.
func (s *Server) DropLinks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.links)
}

// Fail makes requests to path answer with status and message. A zero status
// removes the failure.
func (s *Server) Fail(path string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, path)
		return
	}
	s.failures[path] = failure{status: status, message: message}
}

// Hold blocks requests to path until the returned func is called.
func (s *Server) Hold(path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[path] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.holds[path] == ch {
				delete(s.holds, path)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
}

// Calls counts requests received for path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// OmitProfileUser makes the profile endpoint answer without a user.
func (s *Server) OmitProfileUser(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitUser = omit
}

// SetSummary sets the dashboard summary fixture.
func (s *Server) SetSummary(summary models.DashboardSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summary
}

// SetAccounts sets the accounts fixture.
func (s *Server) SetAccounts(accounts []models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = accounts
}

// SetRecentTransactions sets the recent transactions fixture.
func (s *Server) SetRecentTransactions(txs []models.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = txs
}

// SetBudgets sets the budgets fixture.
func (s *Server) SetBudgets(budgets []models.Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets = budgets
}

// SetGoals sets the goals fixture.
func (s *Server) SetGoals(goals []models.FinancialGoal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = goals
}

// SetMonthlyReport serves raw as the report body for year/month.
func (s *Server) SetMonthlyReport(year, month int, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[[2]int{year, month}] = []byte(raw)
}

func (s *Server) routes() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.instrument)

	db := r.Group("/api/database")
	db.POST("/test", s.testConnection)
	db.POST("/connect", s.connect)
	db.POST("/disconnect", s.disconnect)
	db.GET("/status", s.status)

	auth := r.Group("/api/auth")
	auth.POST("/register", s.requireLink, s.register)
	auth.POST("/login", s.requireLink, s.login)
	auth.POST("/logout", s.requireToken, s.logout)

	user := r.Group("/api", s.requireToken, s.requireLink)
	user.GET("/users/profile", s.profile)
	user.GET("/dashboard/summary", s.dashboardSummary)
	user.GET("/dashboard/recent-transactions", s.recentTransactions)
	user.GET("/accounts", s.listAccounts)
	user.GET("/budgets", s.listBudgets)
	user.GET("/goals", s.listGoals)
	user.GET("/reports/monthly/:year/:month", s.monthlyReport)
	return r
}
