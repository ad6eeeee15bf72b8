package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/notify"
	"fintrack/internal/paginate"
	"fintrack/internal/session"
)

// Exit codes
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

const dateLayout = "2006-01-02 15:04"

var errUsage = errors.New("usage")

// App runs one fintrack subcommand.
type App struct {
	Repo     session.Repository
	Identity auth.Identity
	// Accounts handles login and logout. Nil when the identity is fixed.
	Accounts *auth.StoreIdentity
	Sink     notify.Sink
	// Logger defaults to the one carried by the context given to Run.
	Logger   *log.Logger
	PageSize int
	Out      io.Writer
	Err      io.Writer
}

type command struct {
	usage string
	run   func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"login":      {"login <email>", (*App).login},
	"logout":     {"logout", (*App).logout},
	"whoami":     {"whoami", (*App).whoami},
	"list":       {"list [-page N]", (*App).list},
	"add":        {"add -desc D -amount A -category C -type income|expense", (*App).add},
	"edit":       {"edit -id ID [-desc D] [-amount A] [-category C] [-type T]", (*App).edit},
	"rm":         {"rm -id ID [-page N]", (*App).remove},
	"summary":    {"summary [-by-category]", (*App).summary},
	"categories": {"categories", (*App).categories},
}

var commandOrder = []string{"login", "logout", "whoami", "list", "add", "edit", "rm", "summary", "categories"}

// Run dispatches args[0] and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if a.Logger == nil {
		a.Logger = log.FromContext(ctx)
	}
	if len(args) == 0 {
		a.usage()
		return ExitUsage
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(a.Err, "unknown command %q\n", args[0])
		a.usage()
		return ExitUsage
	}

	err := cmd.run(a, ctx, args[1:])
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		fmt.Fprintf(a.Err, "usage: fintrack %s\n", cmd.usage)
		return ExitUsage
	case errors.Is(err, core.ErrNotAuthenticated):
		fmt.Fprintln(a.Err, "not signed in: run 'fintrack login <email>'")
		return ExitFailure
	default:
		fmt.Fprintf(a.Err, "error: %v\n", err)
		return ExitFailure
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.Err, "usage: fintrack <command> [flags]")
	fmt.Fprintln(a.Err, "commands:")
	for _, name := range commandOrder {
		fmt.Fprintf(a.Err, "  %s\n", commands[name].usage)
	}
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return nil
}

// open binds a session to the current identity and loads it.
func (a *App) open(ctx context.Context) (*session.Session, error) {
	s := session.New(a.Repo, a.Sink, a.Logger)
	if err := s.Open(ctx, a.Identity); err != nil {
		return nil, err
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (a *App) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if a.Accounts == nil {
		return errors.New("identity is fixed by FINTRACK_USER")
	}
	u, err := a.Accounts.Login(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Signed in as %s\n", u.Email)
	return nil
}

func (a *App) logout(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	if a.Accounts == nil {
		return errors.New("identity is fixed by FINTRACK_USER")
	}
	if err := a.Accounts.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.Out, "Signed out")
	return nil
}

func (a *App) whoami(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	u, ok, err := a.Identity.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrNotAuthenticated
	}
	fmt.Fprintln(a.Out, u.Email)
	return nil
}

func (a *App) list(ctx context.Context, args []string) error {
	fs := a.flags("list")
	page := fs.Int("page", 1, "page to show")
	if err := parse(fs, args); err != nil {
		return err
	}

	s, err := a.open(ctx)
	if err != nil {
		return err
	}

	p := paginate.New[core.Transaction](a.PageSize)
	p.SetItems(s.State().Transactions)
	if !p.GoToPage(*page) && *page != 1 {
		return fmt.Errorf("page %d out of range (1-%d)", *page, max(p.TotalPages(), 1))
	}
	a.printPage(p)
	return nil
}

func (a *App) add(ctx context.Context, args []string) error {
	fs := a.flags("add")
	var raw core.RawFields
	fs.StringVar(&raw.Description, "desc", "", "description")
	fs.StringVar(&raw.Amount, "amount", "", "amount, '.' or ',' as decimal separator")
	fs.StringVar(&raw.Category, "category", "", "category")
	fs.StringVar(&raw.Type, "type", "", "income or expense")
	if err := parse(fs, args); err != nil {
		return err
	}

	f, err := core.Validate(raw)
	if err != nil {
		return err
	}

	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	if err := s.Create(ctx, f); err != nil {
		return err
	}

	t := s.State().Transactions[0]
	fmt.Fprintf(a.Out, "%s\n", t.ID)
	return nil
}

func (a *App) edit(ctx context.Context, args []string) error {
	fs := a.flags("edit")
	id := fs.String("id", "", "transaction id")
	var raw core.RawFields
	fs.StringVar(&raw.Description, "desc", "", "description")
	fs.StringVar(&raw.Amount, "amount", "", "amount")
	fs.StringVar(&raw.Category, "category", "", "category")
	fs.StringVar(&raw.Type, "type", "", "income or expense")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: -id is required", errUsage)
	}

	s, err := a.open(ctx)
	if err != nil {
		return err
	}

	// Unset flags keep the stored values. An unknown id changes nothing.
	found := false
	for _, t := range s.State().Transactions {
		if t.ID == *id {
			raw = mergeRaw(raw, t)
			found = true
			break
		}
	}
	if !found {
		a.Logger.DebugContext(ctx, "Edit of unknown transaction ignored", log.FieldTxID, *id)
		fmt.Fprintf(a.Err, "no transaction %s, nothing changed\n", *id)
		return nil
	}

	f, err := core.Validate(raw)
	if err != nil {
		return err
	}
	return s.Update(ctx, *id, f)
}

func mergeRaw(raw core.RawFields, t core.Transaction) core.RawFields {
	if raw.Description == "" {
		raw.Description = t.Description
	}
	if raw.Amount == "" {
		raw.Amount = t.Amount.String()
	}
	if raw.Category == "" {
		raw.Category = string(t.Category)
	}
	if raw.Type == "" {
		raw.Type = string(t.Type)
	}
	return raw
}

func (a *App) remove(ctx context.Context, args []string) error {
	fs := a.flags("rm")
	id := fs.String("id", "", "transaction id")
	page := fs.Int("page", 1, "page the transaction was shown on")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: -id is required", errUsage)
	}

	s, err := a.open(ctx)
	if err != nil {
		return err
	}

	p := paginate.New[core.Transaction](a.PageSize)
	p.SetItems(s.State().Transactions)
	p.GoToPage(*page)

	if err := s.Delete(ctx, *id); err != nil {
		return err
	}

	p.SetItems(s.State().Transactions)
	p.AdjustPageAfterDeletion()
	a.printPage(p)
	return nil
}

func (a *App) summary(ctx context.Context, args []string) error {
	fs := a.flags("summary")
	byCategory := fs.Bool("by-category", false, "break totals down by category")
	if err := parse(fs, args); err != nil {
		return err
	}

	s, err := a.open(ctx)
	if err != nil {
		return err
	}
	st := s.State()

	w := tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "Income\t%s\t\n", st.Summary.Income)
	fmt.Fprintf(w, "Expenses\t%s\t\n", st.Summary.Expenses)
	fmt.Fprintf(w, "Balance\t%s\t\n", st.Summary.Balance)
	if err := w.Flush(); err != nil {
		return err
	}

	if !*byCategory {
		return nil
	}
	for _, kind := range []core.Kind{core.Income, core.Expense} {
		totals := core.ByCategory(st.Transactions, kind)
		if len(totals) == 0 {
			continue
		}
		fmt.Fprintf(a.Out, "\n%s by category\n", titleCase(string(kind)))
		w := tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, c := range totals {
			fmt.Fprintf(w, "%s\t%s\t\n", c.Category, c.Amount)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) categories(_ context.Context, args []string) error {
	if len(args) != 0 {
		return errUsage
	}
	for _, c := range core.Categories {
		fmt.Fprintln(a.Out, c)
	}
	return nil
}

func (a *App) printPage(p *paginate.Paginator[core.Transaction]) {
	if p.Len() == 0 {
		fmt.Fprintln(a.Out, "No transactions")
		return
	}

	w := tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tDESCRIPTION\tCATEGORY\tAMOUNT")
	for _, t := range p.Items() {
		sign := "+"
		if t.Type == core.Expense {
			sign = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s%s\n",
			t.ID, t.Date.Local().Format(dateLayout), t.Description, t.Category, sign, t.Amount)
	}
	w.Flush()
	fmt.Fprintf(a.Out, "Page %d of %d\n", p.CurrentPage(), p.TotalPages())
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
