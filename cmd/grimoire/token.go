// ABOUTME: Token management subcommands: mint, list, and revoke static
// ABOUTME: access tokens stored hashed in the data directory.

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/grimoire/internal/auth"
)

func tokensFilePath() string {
	cfg, err := loadOrDefault(getConfigPath())
	if err == nil && cfg.Auth.TokensFile != "" {
		return cfg.Auth.TokensFile
	}
	return filepath.Join(getDataPath(), "tokens.yaml")
}

func runToken(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: grimoire token <new|list|revoke>")
		fmt.Println()
		fmt.Println("  new NAME [--caps a,b,c]  Mint a token, printing it once")
		fmt.Println("  list                     List token names and capabilities")
		fmt.Println("  revoke NAME              Remove a token")
		return fmt.Errorf("token subcommand required")
	}

	store, err := auth.OpenStaticTokenStore(tokensFilePath())
	if err != nil {
		return fmt.Errorf("opening token store: %w", err)
	}

	switch args[0] {
	case "new":
		return runTokenNew(store, args[1:])
	case "list":
		return runTokenList(store)
	case "revoke":
		return runTokenRevoke(store, args[1:])
	default:
		return fmt.Errorf("unknown token subcommand: %s", args[0])
	}
}

func runTokenNew(store *auth.StaticTokenStore, args []string) error {
	var name string
	var caps []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--caps":
			if i+1 >= len(args) {
				return fmt.Errorf("--caps requires a value")
			}
			caps = splitCaps(args[i+1])
			i++
		case strings.HasPrefix(arg, "--caps="):
			caps = splitCaps(strings.TrimPrefix(arg, "--caps="))
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		case name == "":
			name = arg
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}
	if name == "" {
		return fmt.Errorf("token name is required")
	}

	raw, err := store.Mint(name, caps)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Minted token %q\n", name)
	if len(caps) > 0 {
		fmt.Printf("  Capabilities: %s\n", strings.Join(caps, ", "))
	} else {
		fmt.Println("  Capabilities: all enabled domains")
	}
	fmt.Println()
	fmt.Println("  Store this value now; it is not shown again:")
	fmt.Println()
	fmt.Printf("    %s\n", raw)
	return nil
}

func runTokenList(store *auth.StaticTokenStore) error {
	tokens := store.List()
	if len(tokens) == 0 {
		fmt.Println("No tokens.")
		return nil
	}
	for _, tok := range tokens {
		caps := "all enabled domains"
		if len(tok.Capabilities) > 0 {
			caps = strings.Join(tok.Capabilities, ", ")
		}
		fmt.Printf("  %-20s %-30s created %s\n",
			tok.Name, caps, tok.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func runTokenRevoke(store *auth.StaticTokenStore, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: grimoire token revoke NAME")
	}
	if err := store.Revoke(args[0]); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("  ✓ Revoked %q\n", args[0])
	return nil
}

func splitCaps(s string) []string {
	var caps []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			caps = append(caps, c)
		}
	}
	return caps
}
