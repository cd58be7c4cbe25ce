package dashboard

import (
	"finance-client/internal/metrics"
	"finance-client/internal/models"
)

// OverviewLimit caps the budget and goal overview lists.
const OverviewLimit = 5

// BudgetView is a budget with its derived figures.
type BudgetView struct {
	models.Budget
	metrics.BudgetMetrics
	// DisplayPercent is the utilization clamped for a progress bar.
	DisplayPercent float64
	ProgressColor  string
	StatusColor    string
}

// GoalView is a goal with its progress.
type GoalView struct {
	models.FinancialGoal
	Progress       float64
	DisplayPercent float64
	PriorityColor  string
}

// View is everything the dashboard screen renders.
type View struct {
	// Summary is shown as fetched.
	Summary            *models.DashboardSummary
	TotalBalance       float64
	Accounts           []models.Account
	RecentTransactions []models.Transaction
	Budgets            []BudgetView
	Goals              []GoalView
	BudgetOverview     []BudgetView
	GoalOverview       []GoalView
	Failed             []Source
}

// Build derives the view from a load result.
func Build(r *Result) View {
	v := View{
		Summary:            r.Summary,
		TotalBalance:       metrics.TotalBalance(r.Accounts),
		Accounts:           r.Accounts,
		RecentTransactions: r.RecentTransactions,
		Budgets:            make([]BudgetView, 0, len(r.Budgets)),
		Goals:              make([]GoalView, 0, len(r.Goals)),
		Failed:             r.Failed(),
	}
	for _, b := range r.Budgets {
		v.Budgets = append(v.Budgets, NewBudgetView(b))
	}
	for _, g := range r.Goals {
		v.Goals = append(v.Goals, NewGoalView(g))
	}
	v.BudgetOverview = v.Budgets[:min(len(v.Budgets), OverviewLimit)]
	v.GoalOverview = v.Goals[:min(len(v.Goals), OverviewLimit)]
	return v
}

// NewBudgetView derives the figures for b.
func NewBudgetView(b models.Budget) BudgetView {
	m := metrics.BudgetStatus(b.SpentAmount, b.BudgetAmount)
	v := BudgetView{
		Budget:         b,
		BudgetMetrics:  m,
		DisplayPercent: metrics.ClampPercent(m.UtilizationPercentage),
		ProgressColor:  metrics.ProgressColor(m.UtilizationPercentage),
		StatusColor:    m.Status.Color(),
	}
	// Without a positive budget utilization stays 0, so the bar follows the
	// status instead.
	if b.BudgetAmount <= 0 {
		v.ProgressColor = v.StatusColor
		if m.Status == metrics.StatusOverBudget {
			v.DisplayPercent = 100
		}
	}
	return v
}

// NewGoalView derives the progress of g.
func NewGoalView(g models.FinancialGoal) GoalView {
	p := metrics.GoalProgress(g.CurrentAmount, g.TargetAmount)
	return GoalView{
		FinancialGoal:  g,
		Progress:       p,
		DisplayPercent: metrics.ClampPercent(p),
		PriorityColor:  priorityColor(g.PriorityLevel),
	}
}

func priorityColor(level string) string {
	switch level {
	case models.PriorityHigh:
		return metrics.ColorError
	case models.PriorityMedium:
		return metrics.ColorWarning
	case models.PriorityLow:
		return "info"
	default:
		return "default"
	}
}
