package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/vidauth/internal/client/api"
	"github.com/dmitrijs2005/vidauth/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) ask(prompt string) (string, error) {
	return getSimpleText(a.reader, prompt, a.out)
}

// report prints err in user terms and returns it.
func (a *App) report(err error) error {
	switch {
	case errors.Is(err, common.ErrUnavailable):
		fmt.Fprintln(a.out, "Server unavailable, try again later")
	case errors.Is(err, common.ErrUnauthorized):
		fmt.Fprintln(a.out, "Not authorized:", err)
	default:
		fmt.Fprintln(a.out, "Error:", err)
	}
	return err
}

func (a *App) printUser(u *api.User) {
	fmt.Fprintf(a.out, "%s <%s> %s\n  id: %s\n  avatar: %s\n", u.Username, u.Email, u.FullName, u.ID, u.Avatar)
	if u.CoverImage != "" {
		fmt.Fprintf(a.out, "  cover: %s\n", u.CoverImage)
	}
}

// Register prompts for the sign-up form and creates the account.
func (a *App) Register(ctx context.Context) error {
	var in api.RegisterRequest
	var err error

	for _, f := range []struct {
		prompt string
		dst    *string
	}{
		{"Enter username", &in.Username},
		{"Enter email", &in.Email},
		{"Enter full name", &in.FullName},
		{"Path to avatar image", &in.AvatarPath},
		{"Path to cover image (optional)", &in.CoverPath},
	} {
		if *f.dst, err = a.ask(f.prompt); err != nil {
			return err
		}
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer wipe(password)
	in.Password = string(password)

	u, err := a.session.Register(ctx, in)
	if err != nil {
		return a.report(err)
	}

	fmt.Fprintln(a.out, "Registered!")
	a.printUser(u)
	return nil
}

// Login prompts for username or email and password.
func (a *App) Login(ctx context.Context) error {
	identifier, err := a.ask("Enter username or email")
	if err != nil {
		return err
	}

	password, err := getPassword("Enter password", a.out)
	if err != nil {
		return err
	}
	defer wipe(password)

	u, err := a.session.Login(ctx, identifier, string(password))
	if err != nil {
		return a.report(err)
	}

	a.userName = u.Username
	fmt.Fprintln(a.out, "Logged in as", u.Username)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	u, err := a.session.CurrentUser(ctx)
	if err != nil {
		return a.report(err)
	}
	a.printUser(u)
	return nil
}

// Introspect resolves the access token over gRPC.
func (a *App) Introspect(ctx context.Context) error {
	identity, err := a.session.Introspect(ctx)
	if err != nil {
		return a.report(err)
	}

	keys := make([]string, 0, len(identity))
	for k := range identity {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(a.out, "  %s: %v\n", k, identity[k])
	}
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.session.Refresh(ctx); err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Session refreshed")
	return nil
}

// ChangePassword ends the session; the user logs in again with the new
// password.
func (a *App) ChangePassword(ctx context.Context) error {
	oldPassword, err := getPassword("Current password", a.out)
	if err != nil {
		return err
	}
	defer wipe(oldPassword)

	newPassword, err := getPassword("New password", a.out)
	if err != nil {
		return err
	}
	defer wipe(newPassword)

	if err := a.session.ChangePassword(ctx, string(oldPassword), string(newPassword)); err != nil {
		return a.report(err)
	}
	a.userName = ""
	fmt.Fprintln(a.out, "Password changed, please log in again")
	return nil
}

func (a *App) UpdateDetails(ctx context.Context) error {
	fullName, err := a.ask("New full name (empty to keep)")
	if err != nil {
		return err
	}
	email, err := a.ask("New email (empty to keep)")
	if err != nil {
		return err
	}

	u, err := a.session.UpdateDetails(ctx, fullName, email)
	if err != nil {
		return a.report(err)
	}
	a.printUser(u)
	return nil
}

func (a *App) UpdateAvatar(ctx context.Context) error {
	return a.replaceImage(ctx, "Path to new avatar image", a.session.UpdateAvatar)
}

func (a *App) UpdateCover(ctx context.Context) error {
	return a.replaceImage(ctx, "Path to new cover image", a.session.UpdateCover)
}

func (a *App) replaceImage(ctx context.Context, prompt string, update func(context.Context, string) (*api.User, error)) error {
	path, err := a.ask(prompt)
	if err != nil {
		return err
	}
	u, err := update(ctx, path)
	if err != nil {
		return a.report(err)
	}
	a.printUser(u)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	err := a.session.Logout(ctx)
	a.userName = ""
	if err != nil {
		return a.report(err)
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
