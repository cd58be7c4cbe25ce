package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"finance-client/internal/models"
)

// Endpoint paths.
const (
	PathDatabaseTest       = "/api/database/test"
	PathDatabaseConnect    = "/api/database/connect"
	PathDatabaseDisconnect = "/api/database/disconnect"
	PathDatabaseStatus     = "/api/database/status"
	PathLogin              = "/api/auth/login"
	PathRegister           = "/api/auth/register"
	PathLogout             = "/api/auth/logout"
	PathProfile            = "/api/users/profile"
	PathDashboardSummary   = "/api/dashboard/summary"
	PathAccounts           = "/api/accounts"
	PathRecentTransactions = "/api/dashboard/recent-transactions"
	PathBudgets            = "/api/budgets"
	PathGoals              = "/api/goals"
)

// TestConnection probes credentials without connecting. A 400 from the probe
// is a negative result, not an error.
func (c *Client) TestConnection(ctx context.Context, creds models.DatabaseCredentials) (*models.ConnectionTestResult, error) {
	var result models.ConnectionTestResult
	err := c.do(ctx, http.MethodPost, PathDatabaseTest, false, creds, &result)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return &models.ConnectionTestResult{Success: false, Message: apiErr.Message}, nil
		}
		return nil, err
	}
	return &result, nil
}

// Connect establishes the backend data link.
func (c *Client) Connect(ctx context.Context, creds models.DatabaseCredentials) (*models.ConnectionStatus, error) {
	var status models.ConnectionStatus
	if err := c.do(ctx, http.MethodPost, PathDatabaseConnect, false, creds, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Disconnect tears down the backend data link.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, PathDatabaseDisconnect, false, nil, nil)
}

// Status polls the current data link.
func (c *Client) Status(ctx context.Context) (*models.ConnectionStatus, error) {
	var status models.ConnectionStatus
	if err := c.do(ctx, http.MethodGet, PathDatabaseStatus, false, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Login authenticates with username (or email) and password.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, PathLogin, false, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and authenticates it.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var resp models.AuthResponse
	if err := c.do(ctx, http.MethodPost, PathRegister, false, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout notifies the backend that the session ends.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, PathLogout, true, nil, nil)
}

// Profile resolves the held access token to a user.
func (c *Client) Profile(ctx context.Context) (*models.User, error) {
	var resp struct {
		User *models.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, PathProfile, true, nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("GET %s: response has no user", PathProfile)
	}
	return resp.User, nil
}

// DashboardSummary fetches the server-computed period aggregate.
func (c *Client) DashboardSummary(ctx context.Context) (*models.DashboardSummary, error) {
	var summary models.DashboardSummary
	if err := c.do(ctx, http.MethodGet, PathDashboardSummary, true, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Accounts lists the user's accounts.
func (c *Client) Accounts(ctx context.Context) ([]models.Account, error) {
	var resp struct {
		Accounts []models.Account `json:"accounts"`
	}
	if err := c.do(ctx, http.MethodGet, PathAccounts, true, nil, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Accounts), nil
}

// RecentTransactions lists the latest transactions.
func (c *Client) RecentTransactions(ctx context.Context) ([]models.Transaction, error) {
	var resp struct {
		Transactions []models.Transaction `json:"transactions"`
	}
	if err := c.do(ctx, http.MethodGet, PathRecentTransactions, true, nil, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Transactions), nil
}

// Budgets lists the user's budgets.
func (c *Client) Budgets(ctx context.Context) ([]models.Budget, error) {
	var resp struct {
		Budgets []models.Budget `json:"budgets"`
	}
	if err := c.do(ctx, http.MethodGet, PathBudgets, true, nil, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Budgets), nil
}

// Goals lists the user's financial goals.
func (c *Client) Goals(ctx context.Context) ([]models.FinancialGoal, error) {
	var resp struct {
		Goals []models.FinancialGoal `json:"goals"`
	}
	if err := c.do(ctx, http.MethodGet, PathGoals, true, nil, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Goals), nil
}

// MonthlyReport fetches the category breakdown for one month.
func (c *Client) MonthlyReport(ctx context.Context, year, month int) (*models.MonthlyReport, error) {
	var report models.MonthlyReport
	path := fmt.Sprintf("/api/reports/monthly/%d/%d", year, month)
	if err := c.do(ctx, http.MethodGet, path, true, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
