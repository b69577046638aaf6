package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/MrEthical07/storeAuth/api"
	"github.com/MrEthical07/storeAuth/federated"
	"github.com/MrEthical07/storeAuth/session"
	"go.uber.org/zap"
)

// stdinPrompter asks for a Google ID token on the terminal.
type stdinPrompter struct{}

func (stdinPrompter) Prompt(ctx context.Context) (string, error) {
	fmt.Fprint(os.Stderr, "paste Google ID token: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", nil
	}
	return strings.TrimSpace(line), nil
}

func runGoogleLogin(args []string) error {
	fs := flag.NewFlagSet("google-login", flag.ExitOnError)
	rf := addRedisFlags(fs)
	backendURL := fs.String("backend", envOr("BACKEND_URL", "http://localhost:5000"), "backend base url")
	accountType := fs.String("type", string(storeAuth.RoleCustomer), "account type for first sign-in")
	timeout := fs.Duration("timeout", 2*time.Minute, "how long to wait for the token")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: sessionctl google-login [flags] <scope>")
	}

	ctx := context.Background()
	backend, closeFn, err := rf.backend(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	cred, err := federated.SignIn(ctx, stdinPrompter{}, *timeout)
	if err != nil {
		return err
	}

	store, err := session.NewStore(backend, fs.Arg(0))
	if err != nil {
		return err
	}
	logger, _ := zap.NewDevelopment()
	m := storeAuth.NewManager(store, api.NewClient(*backendURL, nil), logger)
	defer m.Dispose()

	snap, err := m.LoginWithGoogle(ctx, cred.GoogleLogin(*accountType))
	if err != nil {
		return err
	}
	fmt.Printf("%s: logged in as %s (%s)\n", fs.Arg(0), snap.User.Username, snap.User.Role)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
