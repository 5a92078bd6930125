// Package cli is the interactive vidauth client: a small REPL over the HTTP
// API with one command per account operation. The session is saved to the
// local store so it outlives the process.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/vidauth/internal/client/api"
	"github.com/dmitrijs2005/vidauth/internal/client/config"
	"github.com/dmitrijs2005/vidauth/internal/client/store"
)

// Session is the API surface the commands drive. *api.Client implements it.
type Session interface {
	LoggedIn() bool
	Register(ctx context.Context, in api.RegisterRequest) (*api.User, error)
	Login(ctx context.Context, identifier, password string) (*api.User, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*api.User, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	UpdateDetails(ctx context.Context, fullName, email string) (*api.User, error)
	UpdateAvatar(ctx context.Context, path string) (*api.User, error)
	UpdateCover(ctx context.Context, path string) (*api.User, error)
	Introspect(ctx context.Context) (map[string]any, error)
}

type App struct {
	config   *config.Config
	session  Session
	reader   *bufio.Reader
	out      io.Writer
	userName string
	closeFn  func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	client := api.New(c.ServerURL, c.GRPCAddr, c.RequestTimeout)
	app := &App{
		config:  c,
		session: client,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		closeFn: func() error { return nil },
	}

	if c.SessionDB == "" {
		return app, nil
	}
	s, err := store.Open(ctx, c.SessionDB)
	if err != nil {
		return nil, err
	}
	if err := client.Restore(ctx, s); err != nil {
		_ = s.Close()
		return nil, err
	}
	app.closeFn = s.Close
	return app, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.closeFn()

	fmt.Fprintf(a.out, "vidauth client, server %s (type 'help' for commands)\n", a.config.ServerURL)
	if a.isLoggedIn() {
		if u, err := a.session.CurrentUser(ctx); err == nil {
			a.userName = u.Username
			fmt.Fprintln(a.out, "Resumed session of", u.Username)
		}
	}
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.session.LoggedIn()
}

func (a *App) getStatus() string {
	if a.userName == "" || !a.isLoggedIn() {
		return ""
	}
	return "(" + a.userName + ")"
}
