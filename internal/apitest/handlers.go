package apitest

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"finance-client/internal/models"
)

const (
	ctxUserID = "userID"
	ctxLink   = "link"
)

// Claims are carried by issued tokens.
type Claims struct {
	UserID     int64  `json:"uid"`
	Kind       string `json:"kind"`
	Generation int    `json:"gen"`
	jwt.RegisteredClaims
}

func (s *Server) issue(userID int64, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     userID,
		Kind:       kind,
		Generation: s.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) tokens(userID int64) (access, refresh string, err error) {
	if access, err = s.issue(userID, "access", s.ttl); err != nil {
		return "", "", err
	}
	if refresh, err = s.issue(userID, "refresh", 30*24*time.Hour); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// instrument counts calls, applies holds, then injected failures.
func (s *Server) instrument(c *gin.Context) {
	path := c.Request.URL.Path

	s.mu.Lock()
	s.calls[path]++
	hold := s.holds[path]
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}

	s.mu.Lock()
	f, failing := s.failures[path]
	s.mu.Unlock()
	if failing {
		abortError(c, f.status, f.message)
		return
	}
	c.Next()
}

func (s *Server) requireLink(c *gin.Context) {
	cookie, err := c.Cookie(LinkCookieName)
	if err != nil || cookie == "" {
		abortError(c, http.StatusUnauthorized, "Database connection required")
		return
	}
	s.mu.Lock()
	db, ok := s.links[cookie]
	s.mu.Unlock()
	if !ok {
		abortError(c, http.StatusUnauthorized, "Database connection required")
		return
	}
	c.Set(ctxLink, db)
	c.Next()
}

func (s *Server) requireToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		abortError(c, http.StatusUnauthorized, "Authorization required")
		return
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		abortError(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		abortError(c, http.StatusUnauthorized, "Token has expired")
		return
	case err != nil || !token.Valid || claims.Kind != "access":
		abortError(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	s.mu.Lock()
	stale := claims.Generation != s.generation
	_, known := s.users[claims.UserID]
	s.mu.Unlock()
	if stale {
		abortError(c, http.StatusUnauthorized, "Token has expired")
		return
	}
	if !known {
		abortError(c, http.StatusUnauthorized, "Invalid token")
		return
	}

	c.Set(ctxUserID, claims.UserID)
	c.Next()
}

// bindCredentials reports the first missing field the way the backend does.
func bindCredentials(c *gin.Context) (models.DatabaseCredentials, bool) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid request body")
		return models.DatabaseCredentials{}, false
	}
	for _, field := range []string{"host", "user", "password", "database"} {
		if _, ok := raw[field]; !ok {
			abortError(c, http.StatusBadRequest, field+" is required")
			return models.DatabaseCredentials{}, false
		}
	}
	creds := models.DatabaseCredentials{Port: models.DefaultDatabasePort}
	creds.Host, _ = raw["host"].(string)
	creds.User, _ = raw["user"].(string)
	creds.Password, _ = raw["password"].(string)
	creds.Database, _ = raw["database"].(string)
	if port, ok := raw["port"].(float64); ok && port > 0 {
		creds.Port = int(port)
	}
	return creds, true
}

func (s *Server) lookup(creds models.DatabaseCredentials) (Database, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, db := range s.databases {
		if db.Host == creds.Host && db.User == creds.User && db.Password == creds.Password &&
			db.Name == creds.Database && db.Port == creds.Port {
			return db, true
		}
	}
	return Database{}, false
}

func (s *Server) testConnection(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		return
	}
	db, ok := s.lookup(creds)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to connect to database"})
		return
	}

	var missing []string
	for _, t := range RequiredTables {
		if !slices.Contains(db.Tables, t) {
			missing = append(missing, t)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Connection successful",
		"schema_valid":   len(missing) == 0,
		"missing_tables": missing,
	})
}

func (s *Server) connect(c *gin.Context) {
	creds, ok := bindCredentials(c)
	if !ok {
		return
	}
	db, ok := s.lookup(creds)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"connected": false, "error": "Failed to connect to database"})
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.links[id] = db
	s.mu.Unlock()

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     LinkCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(LinkDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.JSON(http.StatusOK, gin.H{"connected": true, "message": "Successfully connected to database"})
}

func (s *Server) disconnect(c *gin.Context) {
	if cookie, err := c.Cookie(LinkCookieName); err == nil {
		s.mu.Lock()
		delete(s.links, cookie)
		s.mu.Unlock()
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     LinkCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	c.JSON(http.StatusOK, gin.H{"connected": false, "message": "Disconnected from database"})
}

func (s *Server) status(c *gin.Context) {
	cookie, _ := c.Cookie(LinkCookieName)
	s.mu.Lock()
	db, ok := s.links[cookie]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"connected": false, "database": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "database": db.Name})
}

type registerBody struct {
	Username  *string `json:"username"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

func (s *Server) register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	required := []struct {
		name  string
		value *string
	}{
		{"username", body.Username},
		{"email", body.Email},
		{"password", body.Password},
		{"first_name", body.FirstName},
		{"last_name", body.LastName},
	}
	for _, f := range required {
		if f.value == nil {
			abortError(c, http.StatusBadRequest, f.name+" is required")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.users {
		if a.user.Username == *body.Username {
			abortError(c, http.StatusBadRequest, "Username already exists")
			return
		}
		if a.user.Email == *body.Email {
			abortError(c, http.StatusBadRequest, "Email already exists")
			return
		}
	}
	a, err := s.addUserLocked(*body.Username, *body.Email, *body.Password, *body.FirstName, *body.LastName)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	access, refresh, err := s.tokens(a.user.ID)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":       "User registered successfully",
		"user":          a.user,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		abortError(c, http.StatusBadRequest, "Username and password are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var found *account
	for _, a := range s.users {
		if a.user.Username == req.Username || a.user.Email == req.Username {
			found = a
			break
		}
	}
	if found == nil || bcrypt.CompareHashAndPassword(found.passwordHash, []byte(req.Password)) != nil {
		abortError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !found.user.IsActive {
		abortError(c, http.StatusForbidden, "Account is deactivated")
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	found.user.LastLogin = &now
	access, refresh, err := s.tokens(found.user.ID)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Login successful",
		"user":          found.user,
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (s *Server) logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (s *Server) profile(c *gin.Context) {
	id := c.GetInt64(ctxUserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.omitUser {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	a, ok := s.users[id]
	if !ok {
		abortError(c, http.StatusNotFound, "User not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": a.user})
}

func (s *Server) dashboardSummary(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.summary)
}

func (s *Server) recentTransactions(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"transactions": s.recent})
}

func (s *Server) listAccounts(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"accounts": s.accounts})
}

func (s *Server) listBudgets(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"budgets": s.budgets})
}

func (s *Server) listGoals(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"goals": s.goals})
}

func (s *Server) monthlyReport(c *gin.Context) {
	year, errY := strconv.Atoi(c.Param("year"))
	month, errM := strconv.Atoi(c.Param("month"))
	if errY != nil || errM != nil || month < 1 || month > 12 {
		abortError(c, http.StatusBadRequest, fmt.Sprintf("invalid period %s/%s", c.Param("year"), c.Param("month")))
		return
	}
	s.mu.Lock()
	raw, ok := s.reports[[2]int{year, month}]
	s.mu.Unlock()
	if !ok {
		abortError(c, http.StatusNotFound, "Report not found")
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}
