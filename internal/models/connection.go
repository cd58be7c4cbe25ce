package models

// DefaultDatabasePort is used when credentials omit the port.
const DefaultDatabasePort = 3306

// DatabaseCredentials identify and authenticate the backend data link.
type DatabaseCredentials struct {
	Host     string `json:"host" validate:"required"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password" validate:"required"`
	Database string `json:"database" validate:"required"`
	Port     int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
}

// ConnectionStatus reflects the backend's current data link. Descriptor
// fields are empty when disconnected.
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Database  string `json:"database,omitempty"`
	Host      string `json:"host,omitempty"`
	User      string `json:"user,omitempty"`
	Port      int    `json:"port,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ConnectionTestResult is the outcome of probing credentials without
// connecting.
type ConnectionTestResult struct {
	Success       bool     `json:"success"`
	SchemaValid   bool     `json:"schema_valid"`
	MissingTables []string `json:"missing_tables"`
	Message       string   `json:"message"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Message      string `json:"message"`
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest holds the profile fields for a new account.
// ConfirmPassword is checked locally and never sent.
type RegisterRequest struct {
	Username        string `json:"username" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"-" field:"confirm_password" validate:"eqfield=Password"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
}

// LoginRequest holds login credentials. Username may also be an email.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenPair is the persisted bearer credential. Both halves are written and
// cleared together.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Empty reports whether no access token is held.
func (p TokenPair) Empty() bool {
	return p.AccessToken == ""
}
