package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"finance-client/internal/api"
	"finance-client/internal/config"
	"finance-client/internal/dashboard"
	"finance-client/internal/metrics"
	"finance-client/internal/models"
	"finance-client/internal/session"
	"finance-client/internal/storage"
)

const usage = `Usage: finance [-api <url>] [-db <path>] <command> [flags]

Commands:
  test            Check database credentials without connecting
  connect         Connect the backend to a database
  status          Show the connection and session state
  disconnect      Disconnect from the database and sign out
  register        Create an account and sign in
  login           Sign in
  logout          Sign out
  whoami          Show the signed-in user
  dashboard       Show the dashboard
  top-categories  Show the largest expense categories for a month
`

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("finance", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	apiURL := fs.String("api", cfg.APIURL, "Backend base URL")
	dbPath := fs.String("db", cfg.StateDB, "Path to the local state database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.APIURL = strings.TrimRight(*apiURL, "/")
	cfg.StateDB = *dbPath

	if fs.NArg() == 0 {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("missing command")
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", name)
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, cmd.screen, stdin, stdout)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.ctrl.Init(ctx); err != nil {
		log.Printf("Startup failed: %v", err)
	}

	err = cmd.run(ctx, a, rest)
	if a.router.Navigations() > 0 && a.router.Location() == session.LoginPath {
		fmt.Fprintln(stderr, "Session expired, please log in again.")
	}
	return err
}

type command struct {
	// screen is where the command starts, for the 401 redirect check.
	screen string
	run    func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"test":           {session.DatabaseConnectPath, cmdTest},
	"connect":        {session.DatabaseConnectPath, cmdConnect},
	"status":         {session.DatabaseConnectPath, cmdStatus},
	"disconnect":     {session.DashboardPath, cmdDisconnect},
	"register":       {session.LoginPath, cmdRegister},
	"login":          {session.LoginPath, cmdLogin},
	"logout":         {session.DashboardPath, cmdLogout},
	"whoami":         {session.DashboardPath, cmdWhoami},
	"dashboard":      {session.DashboardPath, cmdDashboard},
	"top-categories": {session.DashboardPath, cmdTopCategories},
}

// app wires the client stack for one invocation.
type app struct {
	out    io.Writer
	prompt *prompter

	db     *storage.DB
	client *api.Client
	router *session.Router
	ctrl   *session.Controller

	closers []func() error
}

func newApp(ctx context.Context, cfg config.Config, screen string, stdin io.Reader, stdout io.Writer) (*app, error) {
	db, err := storage.NewDB(cfg.StateDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	a := &app{
		out:     stdout,
		prompt:  &prompter{in: stdin, out: stdout},
		db:      db,
		closers: []func() error{db.Close},
	}

	var tokens session.TokenStore = db
	if cfg.TokenStore == config.StoreRedis {
		rc, err := storage.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, rc.Close)
		tokens = storage.NewRedisTokenStore(rc, "finance:")
	}

	jar, err := api.NewPersistentJar(ctx, cfg.APIURL, db)
	if err != nil {
		a.close()
		return nil, err
	}
	client, err := api.NewClient(cfg.APIURL, api.WithCookieJar(jar), api.WithTimeout(cfg.HTTPTimeout))
	if err != nil {
		a.close()
		return nil, err
	}

	a.client = client
	a.router = session.NewRouter(screen)
	a.ctrl = session.New(client, tokens, a.router)
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Printf("Close failed: %v", err)
		}
	}
}

// requireSession explains where to go when no user is signed in.
func (a *app) requireSession() error {
	if err := a.ctrl.RequireAuthenticated(); err != nil {
		switch session.RouteFor(a.ctrl.Snapshot()) {
		case session.DatabaseConnectPath:
			return fmt.Errorf("%w: not connected to a database, run 'finance connect' first", err)
		default:
			return fmt.Errorf("%w: run 'finance login' first", err)
		}
	}
	return nil
}

func credentialFlags(fs *flag.FlagSet) *models.DatabaseCredentials {
	c := &models.DatabaseCredentials{}
	fs.StringVar(&c.Host, "host", "localhost", "Database host")
	fs.StringVar(&c.User, "user", "", "Database user")
	fs.StringVar(&c.Password, "password", "", "Database password (optional, will prompt if omitted)")
	fs.StringVar(&c.Database, "database", "", "Database name")
	fs.IntVar(&c.Port, "port", models.DefaultDatabasePort, "Database port")
	return c
}

func (a *app) parse(name string, fs *flag.FlagSet, args []string) error {
	fs.SetOutput(a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%s: unexpected arguments %v", name, fs.Args())
	}
	return nil
}

func (a *app) credentials(name string, args []string) (models.DatabaseCredentials, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	creds := credentialFlags(fs)
	if err := a.parse(name, fs, args); err != nil {
		return models.DatabaseCredentials{}, err
	}
	if creds.Password == "" {
		pw, err := a.prompt.secret("Database password: ")
		if err != nil {
			return models.DatabaseCredentials{}, fmt.Errorf("failed to read password: %w", err)
		}
		creds.Password = pw
	}
	return *creds, nil
}

func cmdTest(ctx context.Context, a *app, args []string) error {
	creds, err := a.credentials("test", args)
	if err != nil {
		return err
	}
	result, err := a.ctrl.TestConnection(ctx, creds)
	if err != nil {
		return describe(err)
	}
	if !result.Success {
		return fmt.Errorf("connection failed: %s", result.Message)
	}
	fmt.Fprintln(a.out, result.Message)
	if result.SchemaValid {
		fmt.Fprintln(a.out, "Schema is valid")
	} else {
		fmt.Fprintf(a.out, "Missing tables: %s\n", strings.Join(result.MissingTables, ", "))
	}
	return nil
}

func cmdConnect(ctx context.Context, a *app, args []string) error {
	creds, err := a.credentials("connect", args)
	if err != nil {
		return err
	}
	status, err := a.ctrl.ConnectDatabase(ctx, creds)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "Connected to %s on %s:%d as %s\n", status.Database, status.Host, status.Port, status.User)
	return nil
}

func cmdStatus(ctx context.Context, a *app, args []string) error {
	if err := a.parse("status", flag.NewFlagSet("status", flag.ContinueOnError), args); err != nil {
		return err
	}
	snap := a.ctrl.Snapshot()
	if snap.Connection.Connected {
		fmt.Fprintf(a.out, "Database: connected (%s)\n", snap.Connection.Database)
	} else {
		fmt.Fprintln(a.out, "Database: not connected")
	}
	if snap.User != nil {
		fmt.Fprintf(a.out, "User: %s\n", snap.User.Username)
	} else {
		fmt.Fprintln(a.out, "User: not logged in")
	}
	fmt.Fprintf(a.out, "State: %s\n", snap.State)
	return nil
}

func cmdDisconnect(ctx context.Context, a *app, args []string) error {
	if err := a.parse("disconnect", flag.NewFlagSet("disconnect", flag.ContinueOnError), args); err != nil {
		return err
	}
	if err := a.ctrl.DisconnectDatabase(ctx); err != nil {
		return describe(err)
	}
	fmt.Fprintln(a.out, "Disconnected from database")
	return nil
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var req models.RegisterRequest
	fs.StringVar(&req.Username, "username", "", "Username")
	fs.StringVar(&req.Email, "email", "", "Email address")
	fs.StringVar(&req.FirstName, "first", "", "First name")
	fs.StringVar(&req.LastName, "last", "", "Last name")
	fs.StringVar(&req.Password, "password", "", "Password (optional, will prompt if omitted)")
	if err := a.parse("register", fs, args); err != nil {
		return err
	}

	req.ConfirmPassword = req.Password
	if req.Password == "" {
		var err error
		if req.Password, err = a.prompt.secret("Password: "); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		if req.ConfirmPassword, err = a.prompt.secret("Confirm password: "); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	user, err := a.ctrl.Register(ctx, req)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "Account %s created, logged in\n", user.Username)
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("user", "", "Username or email")
	password := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := a.parse("login", fs, args); err != nil {
		return err
	}

	pw := *password
	if pw == "" {
		var err error
		if pw, err = a.prompt.secret("Password: "); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}
	user, err := a.ctrl.Login(ctx, *username, pw)
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s %s)\n", user.Username, user.FirstName, user.LastName)
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if err := a.parse("logout", flag.NewFlagSet("logout", flag.ContinueOnError), args); err != nil {
		return err
	}
	if err := a.ctrl.Logout(ctx); err != nil {
		return describe(err)
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	if err := a.parse("whoami", flag.NewFlagSet("whoami", flag.ContinueOnError), args); err != nil {
		return err
	}
	if err := a.requireSession(); err != nil {
		return err
	}
	u := a.ctrl.Snapshot().User
	fmt.Fprintf(a.out, "%s <%s>\n%s %s\n", u.Username, u.Email, u.FirstName, u.LastName)
	return nil
}

func cmdDashboard(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ContinueOnError)
	partial := fs.Bool("partial", false, "Show whatever loaded when a source fails")
	if err := a.parse("dashboard", fs, args); err != nil {
		return err
	}

	policy := dashboard.AllOrNothing
	if *partial {
		policy = dashboard.Partial
	}
	res, err := dashboard.NewLoader(a.client, dashboard.WithGuard(a.ctrl), dashboard.WithPolicy(policy)).Load(ctx)
	if errors.Is(err, session.ErrNotAuthenticated) {
		return a.requireSession()
	}
	if err != nil {
		return err
	}
	log.Printf("Dashboard loaded: %s", res)
	printDashboard(a.out, dashboard.Build(res))
	return nil
}

func printDashboard(out io.Writer, v dashboard.View) {
	if s := v.Summary; s != nil {
		fmt.Fprintf(out, "Income:    %10.2f\n", s.TotalIncome)
		fmt.Fprintf(out, "Expenses:  %10.2f\n", s.TotalExpenses)
		fmt.Fprintf(out, "Net:       %10.2f\n", s.NetIncome)
		fmt.Fprintf(out, "Transactions this month: %d\n", s.TransactionCount)
	}
	fmt.Fprintf(out, "Total balance: %.2f\n", v.TotalBalance)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(out, "\nBudgets")
	if len(v.BudgetOverview) == 0 {
		fmt.Fprintln(out, "  No budgets set up")
	}
	for _, b := range v.BudgetOverview {
		name := "Budget"
		if b.CategoryName != nil {
			name = *b.CategoryName
		}
		fmt.Fprintf(tw, "  %s\t%.2f / %.2f\t%.2f%%\t%s\n", name, b.SpentAmount, b.BudgetAmount, b.UtilizationPercentage, b.Status)
	}
	tw.Flush()

	fmt.Fprintln(out, "\nGoals")
	if len(v.GoalOverview) == 0 {
		fmt.Fprintln(out, "  No active goals")
	}
	for _, g := range v.GoalOverview {
		fmt.Fprintf(tw, "  %s\t%.2f / %.2f\t%.2f%%\n", g.Name, g.CurrentAmount, g.TargetAmount, g.Progress)
	}
	tw.Flush()

	fmt.Fprintln(out, "\nRecent transactions")
	if len(v.RecentTransactions) == 0 {
		fmt.Fprintln(out, "  No transactions found")
	}
	for _, t := range v.RecentTransactions {
		desc := ""
		if t.Description != nil {
			desc = *t.Description
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", t.Date, desc, metrics.DisplayAmount(t))
	}
	tw.Flush()

	if len(v.Failed) > 0 {
		names := make([]string, len(v.Failed))
		for i, s := range v.Failed {
			names[i] = string(s)
		}
		fmt.Fprintf(out, "\nCould not load: %s\n", strings.Join(names, ", "))
	}
}

func cmdTopCategories(ctx context.Context, a *app, args []string) error {
	now := time.Now()
	fs := flag.NewFlagSet("top-categories", flag.ContinueOnError)
	year := fs.Int("year", now.Year(), "Report year")
	month := fs.Int("month", int(now.Month()), "Report month (1-12)")
	n := fs.Int("n", metrics.DefaultTopCategories, "Number of categories")
	if err := a.parse("top-categories", fs, args); err != nil {
		return err
	}
	if *month < 1 || *month > 12 {
		return fmt.Errorf("invalid month %d", *month)
	}
	if *n < 1 {
		return fmt.Errorf("invalid count %d", *n)
	}
	if err := a.requireSession(); err != nil {
		return err
	}

	report, err := a.client.MonthlyReport(ctx, *year, *month)
	if err != nil {
		return describe(err)
	}
	top := metrics.TopExpenseCategories(report.CategoryBreakdown, *n)
	if len(top) == 0 {
		fmt.Fprintf(a.out, "No expenses in %s %d\n", time.Month(*month), *year)
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	for i, ct := range top {
		fmt.Fprintf(tw, "%d.\t%s\t%.2f\n", i+1, ct.Name, ct.Total)
	}
	return tw.Flush()
}

// describe expands validation failures into one line per field.
func describe(err error) error {
	var verrs session.ValidationErrors
	if errors.As(err, &verrs) {
		lines := make([]string, len(verrs))
		for i, fe := range verrs {
			lines[i] = "  " + fe.Field + ": " + fe.Message
		}
		return fmt.Errorf("invalid input:\n%s", strings.Join(lines, "\n"))
	}
	return err
}
