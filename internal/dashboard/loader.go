// Package dashboard loads the five dashboard sources concurrently and turns
// them into a view through the metrics package.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"finance-client/internal/models"
)

// Source names one dashboard input.
type Source string

const (
	SourceSummary            Source = "summary"
	SourceAccounts           Source = "accounts"
	SourceRecentTransactions Source = "recent_transactions"
	SourceBudgets            Source = "budgets"
	SourceGoals              Source = "goals"
)

// Sources lists every input in display order.
var Sources = []Source{SourceSummary, SourceAccounts, SourceRecentTransactions, SourceBudgets, SourceGoals}

// Policy decides what a failed source does to the whole load.
type Policy int

const (
	// AllOrNothing fails the load if any source fails.
	AllOrNothing Policy = iota
	// Partial returns whatever loaded and reports failures per source.
	Partial
)

func (p Policy) String() string {
	if p == Partial {
		return "partial"
	}
	return "all-or-nothing"
}

// ErrLoadFailed matches every LoadError.
var ErrLoadFailed = errors.New("failed to load dashboard data")

// LoadError is returned by an AllOrNothing load. Its message does not say
// which source failed; Source and Err are kept for logs.
type LoadError struct {
	Source Source
	Err    error
}

func (e *LoadError) Error() string {
	return ErrLoadFailed.Error()
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoadFailed, e.Err}
}

// Fetcher reads the dashboard sources.
type Fetcher interface {
	DashboardSummary(ctx context.Context) (*models.DashboardSummary, error)
	Accounts(ctx context.Context) ([]models.Account, error)
	RecentTransactions(ctx context.Context) ([]models.Transaction, error)
	Budgets(ctx context.Context) ([]models.Budget, error)
	Goals(ctx context.Context) ([]models.FinancialGoal, error)
}

// Guard rejects loads without a user session.
type Guard interface {
	RequireAuthenticated() error
}

// Result holds the fetched sources. Under Partial, a failed source is left
// at its zero value and listed in Errors.
type Result struct {
	Summary            *models.DashboardSummary
	Accounts           []models.Account
	RecentTransactions []models.Transaction
	Budgets            []models.Budget
	Goals              []models.FinancialGoal
	Errors             map[Source]error
}

// Complete reports whether every source loaded.
func (r *Result) Complete() bool {
	return len(r.Errors) == 0
}

// Failed lists failed sources in display order.
func (r *Result) Failed() []Source {
	var out []Source
	for _, s := range Sources {
		if _, ok := r.Errors[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Loader fans the dashboard fetches out concurrently.
type Loader struct {
	fetch  Fetcher
	guard  Guard
	policy Policy
}

// Option configures a Loader.
type Option func(*Loader)

// WithPolicy sets the failure policy. The default is AllOrNothing.
func WithPolicy(p Policy) Option {
	return func(l *Loader) {
		l.policy = p
	}
}

// WithGuard makes Load fail unless guard allows it.
func WithGuard(guard Guard) Option {
	return func(l *Loader) {
		l.guard = guard
	}
}

// NewLoader returns a loader reading from fetch.
func NewLoader(fetch Fetcher, opts ...Option) *Loader {
	l := &Loader{fetch: fetch, policy: AllOrNothing}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches all sources and waits for every fetch to settle.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	if l.guard != nil {
		if err := l.guard.RequireAuthenticated(); err != nil {
			return nil, err
		}
	}

	res := &Result{Errors: make(map[Source]error)}
	var (
		mu   sync.Mutex
		g    *errgroup.Group
		gctx = ctx
	)
	if l.policy == AllOrNothing {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = new(errgroup.Group)
	}

	fail := func(src Source, err error) error {
		log.Printf("[DASHBOARD] loading %s: %v", src, err)
		if l.policy == AllOrNothing {
			return &LoadError{Source: src, Err: err}
		}
		mu.Lock()
		res.Errors[src] = err
		mu.Unlock()
		return nil
	}

	g.Go(func() error {
		v, err := l.fetch.DashboardSummary(gctx)
		if err != nil {
			return fail(SourceSummary, err)
		}
		res.Summary = v
		return nil
	})
	g.Go(func() error {
		v, err := l.fetch.Accounts(gctx)
		if err != nil {
			return fail(SourceAccounts, err)
		}
		res.Accounts = v
		return nil
	})
	g.Go(func() error {
		v, err := l.fetch.RecentTransactions(gctx)
		if err != nil {
			return fail(SourceRecentTransactions, err)
		}
		res.RecentTransactions = v
		return nil
	})
	g.Go(func() error {
		v, err := l.fetch.Budgets(gctx)
		if err != nil {
			return fail(SourceBudgets, err)
		}
		res.Budgets = v
		return nil
	})
	g.Go(func() error {
		v, err := l.fetch.Goals(gctx)
		if err != nil {
			return fail(SourceGoals, err)
		}
		res.Goals = v
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if !res.Complete() {
		names := make([]string, 0, len(res.Errors))
		for _, s := range res.Failed() {
			names = append(names, string(s))
		}
		log.Printf("[DASHBOARD] partial load, missing %s", strings.Join(names, ", "))
	}
	return res, nil
}

// String summarizes what loaded, for logs.
func (r *Result) String() string {
	return fmt.Sprintf("%d accounts, %d transactions, %d budgets, %d goals, %d failed",
		len(r.Accounts), len(r.RecentTransactions), len(r.Budgets), len(r.Goals), len(r.Errors))
}
