package federated

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/MrEthical07/storeAuth/jwt"
)

var (
	// ErrPromptNotDisplayed means the prompt did not produce an answer before the timeout.
	ErrPromptNotDisplayed = errors.New("sign-in prompt not displayed")
	// ErrPromptDismissed means the user closed the prompt without choosing an account.
	ErrPromptDismissed = errors.New("sign-in prompt dismissed")
	// ErrInvalidIDToken means the returned token has no readable profile.
	ErrInvalidIDToken = errors.New("invalid id token")
)

// DefaultPromptTimeout bounds SignIn when the caller passes no timeout.
const DefaultPromptTimeout = 60 * time.Second

// Prompter shows a federated account chooser and returns the selected ID token. An empty token
// with a nil error means the user dismissed it.
type Prompter interface {
	Prompt(ctx context.Context) (string, error)
}

// PrompterFunc adapts a function to [Prompter].
type PrompterFunc func(ctx context.Context) (string, error)

// Prompt calls f.
func (f PrompterFunc) Prompt(ctx context.Context) (string, error) {
	return f(ctx)
}

// Credential is a federated ID token plus the profile it carries.
type Credential struct {
	IDToken string
	Profile jwt.Profile
}

// GoogleLogin builds the exchange request for accountType (usually "CUSTOMER").
func (c Credential) GoogleLogin(accountType string) storeAuth.GoogleLogin {
	return storeAuth.GoogleLogin{
		IDToken:     c.IDToken,
		Subject:     c.Profile.Subject,
		Email:       c.Profile.Email,
		Name:        c.Profile.Name,
		Picture:     c.Profile.Picture,
		AccountType: accountType,
	}
}

// FromIDToken builds a Credential from a token the browser already obtained.
func FromIDToken(idToken string) (Credential, error) {
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return Credential{}, ErrPromptDismissed
	}
	profile, ok := jwt.DecodeProfile(idToken)
	if !ok {
		return Credential{}, ErrInvalidIDToken
	}
	return Credential{IDToken: idToken, Profile: profile}, nil
}

// SignIn shows the prompt and waits for the user, at most timeout. The prompt runs on its own
// goroutine so a prompter that ignores ctx still cannot block the caller past the timeout.
func SignIn(ctx context.Context, p Prompter, timeout time.Duration) (Credential, error) {
	if timeout <= 0 {
		timeout = DefaultPromptTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		token string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, err := p.Prompt(ctx)
		done <- result{token: token, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return Credential{}, ErrPromptNotDisplayed
			}
			return Credential{}, fmt.Errorf("sign-in prompt failed: %w", res.err)
		}
		return FromIDToken(res.token)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Credential{}, ErrPromptNotDisplayed
		}
		return Credential{}, ctx.Err()
	}
}
