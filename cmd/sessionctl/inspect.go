package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/MrEthical07/storeAuth/jwt"
	"github.com/MrEthical07/storeAuth/session"
	"github.com/redis/go-redis/v9"
)

func runDecode(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: sessionctl decode <token>")
	}
	claims, ok := jwt.Decode(args[0])
	if !ok {
		return errors.New("token payload is not readable")
	}

	out := map[string]any{
		"claims":        claims,
		"resolved_role": storeAuth.NormalizeRole(claims.Role),
	}
	if claims.ExpiresAt != nil {
		out["expires_in"] = time.Until(claims.ExpiresAt.Time).Round(time.Second).String()
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type redisFlags struct {
	url    *string
	prefix *string
}

func addRedisFlags(fs *flag.FlagSet) redisFlags {
	defaults := storeAuth.DefaultConfig()
	return redisFlags{
		url:    fs.String("redis-url", os.Getenv("REDIS_URL"), "redis url (default $REDIS_URL)"),
		prefix: fs.String("prefix", defaults.Session.RedisPrefix, "session key prefix"),
	}
}

func (f redisFlags) backend(ctx context.Context) (*session.RedisBackend, func(), error) {
	if *f.url == "" {
		return nil, nil, errors.New("set -redis-url or REDIS_URL")
	}
	opts, err := redis.ParseURL(*f.url)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	// Inspection must not extend lifetimes, so no TTL and no sliding renewal.
	return session.NewRedisBackend(client, *f.prefix, 0, false), func() { _ = client.Close() }, nil
}

func runShow(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	rf := addRedisFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()
	backend, closeFn, err := rf.backend(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if fs.NArg() == 0 {
		scopes, err := backend.Scopes(ctx)
		if err != nil {
			return err
		}
		for _, scope := range scopes {
			fmt.Println(scope)
		}
		fmt.Fprintf(os.Stderr, "%d scopes\n", len(scopes))
		return nil
	}

	scope := fs.Arg(0)
	store, err := session.NewStore(backend, scope)
	if err != nil {
		return err
	}
	sess, ok, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Printf("%s: no session\n", scope)
		return nil
	}

	role := storeAuth.RoleCustomer
	if claims, ok := jwt.Decode(sess.Token); ok {
		role = storeAuth.NormalizeRole(claims.Role)
	}
	ttl, err := backend.TTL(ctx, scope)
	if err != nil {
		return err
	}

	fmt.Printf("scope:    %s\n", scope)
	fmt.Printf("username: %s\n", sess.Username)
	fmt.Printf("role:     %s\n", role)
	if sess.Email != "" {
		fmt.Printf("email:    %s\n", sess.Email)
	}
	if sess.FullName != "" {
		fmt.Printf("name:     %s\n", sess.FullName)
	}
	if ttl > 0 {
		fmt.Printf("expires:  %s\n", ttl.Round(time.Second))
	} else {
		fmt.Println("expires:  never")
	}
	return nil
}

func runClear(args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	rf := addRedisFlags(fs)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: sessionctl clear [flags] <scope>")
	}

	ctx := context.Background()
	backend, closeFn, err := rf.backend(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	store, err := session.NewStore(backend, fs.Arg(0))
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	fmt.Printf("%s: cleared\n", fs.Arg(0))
	return nil
}
