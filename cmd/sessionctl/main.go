// Command sessionctl inspects and exercises storefront sessions.
//
//	sessionctl decode <token>              print the unverified claims of a token
//	sessionctl show [-redis-url U] [scope] list scopes, or show one scope's session
//	sessionctl clear [-redis-url U] scope  remove a scope's session
//	sessionctl google-login [flags] scope  read a Google ID token from stdin and log scope in
//	sessionctl bench [flags]               measure manager transitions against Redis
//
// Commands that need Redis read -redis-url, then REDIS_URL. bench falls back to miniredis.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "decode":
		err = runDecode(args)
	case "show":
		err = runShow(args)
	case "clear":
		err = runClear(args)
	case "google-login":
		err = runGoogleLogin(args)
	case "bench":
		err = runBench(args)
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sessionctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: sessionctl <decode|show|clear|google-login|bench> [flags] [args]")
}
