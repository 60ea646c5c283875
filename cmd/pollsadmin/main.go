package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/vncsmyrnk/pollsite/internal/adapters/hasher/bcrypt"
	"github.com/vncsmyrnk/pollsite/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/pollsite/internal/config"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
	"github.com/vncsmyrnk/pollsite/internal/core/services"
)

const usage = `usage: pollsadmin <command> [flags]

commands:
  create-account    --username --email --password [--admin]
  create-question   --text --choice a --choice b [--owner username] [--access-code code] [--publish-in 0s]
  set-access-code   --question id [--code code]
  purge-sessions

Database settings come from the environment (POSTGRES_HOST, POSTGRES_DB, ...).
`

type admin struct {
	questions ports.QuestionService
	accounts  ports.AccountService
	sessions  ports.SessionStore
	out       io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadDatabase(nil)
	if err != nil {
		log.Fatal(err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.PostgresURL())
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Fatal("database unreachable")
	}

	hasher := bcrypt.NewHasher(cfg.BcryptCost)
	app := &admin{
		questions: services.NewQuestionService(postgres.NewQuestionRepository(db), hasher),
		accounts:  services.NewAccountService(postgres.NewAccountRepository(db), hasher),
		sessions:  postgres.NewSessionRepository(db),
		out:       os.Stdout,
	}

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.WithField("command", os.Args[1]).Fatal(err)
	}
}

func (a *admin) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "create-account":
		return a.createAccount(ctx, args)
	case "create-question":
		return a.createQuestion(ctx, args)
	case "set-access-code":
		return a.setAccessCode(ctx, args)
	case "purge-sessions":
		return a.purgeSessions(ctx, args)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", command, usage)
	}
}

func (a *admin) createAccount(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("create-account", pflag.ContinueOnError)
	username := fs.String("username", "", "Login name.")
	email := fs.String("email", "", "Contact email.")
	password := fs.String("password", "", "Password, stored as a bcrypt hash.")
	isAdmin := fs.Bool("admin", false, "Allow deleting any question.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	account, err := a.accounts.Create(ctx, ports.CreateAccountInput{
		Username: *username,
		Email:    *email,
		Password: *password,
		IsAdmin:  *isAdmin,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Created account %q (id %d)\n", account.Username, account.ID)
	return nil
}

func (a *admin) createQuestion(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("create-question", pflag.ContinueOnError)
	text := fs.String("text", "", "Question text.")
	choices := fs.StringSlice("choice", nil, "Choice text, repeat or comma separate.")
	owner := fs.String("owner", "", "Username of the owning account.")
	accessCode := fs.String("access-code", "", "Code required to view the question.")
	publishIn := fs.Duration("publish-in", 0, "Delay before the question is published; negative backdates it.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	input := ports.CreateQuestionInput{
		Text:       *text,
		Choices:    *choices,
		PubDate:    time.Now().Add(*publishIn),
		AccessCode: *accessCode,
	}

	if *owner != "" {
		account, err := a.accounts.GetByUsername(ctx, *owner)
		if err != nil {
			return err
		}
		if account == nil {
			return fmt.Errorf("no account named %q", *owner)
		}
		input.OwnerID = &account.ID
	}

	question, err := a.questions.Create(ctx, input)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Created question %d with %d choices, published %s\n",
		question.ID, len(question.Choices), question.PubDate.Format(time.RFC3339))
	return nil
}

func (a *admin) setAccessCode(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("set-access-code", pflag.ContinueOnError)
	questionID := fs.Int64("question", 0, "Question id.")
	code := fs.String("code", "", "New access code; empty removes the gate.")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.questions.SetAccessCode(ctx, *questionID, *code); err != nil {
		return err
	}

	if *code == "" {
		fmt.Fprintf(a.out, "Removed access code from question %d\n", *questionID)
	} else {
		fmt.Fprintf(a.out, "Set access code on question %d\n", *questionID)
	}
	return nil
}

func (a *admin) purgeSessions(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("purge-sessions", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	n, err := a.sessions.PurgeExpired(ctx, time.Now())
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Purged %d expired sessions\n", n)
	return nil
}
