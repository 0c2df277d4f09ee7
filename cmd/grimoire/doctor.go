// ABOUTME: Diagnostic subcommands: doctor runs privacy, storage, and
// ABOUTME: automation checks; tools lists what the registry serves.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/2389/grimoire/internal/bridge"
	"github.com/2389/grimoire/internal/fault"
)

// automationApps maps each domain to the application its automation
// backend scripts. Contacts reads files only and has no automation side.
var automationApps = map[string]string{
	"messages":  "Messages",
	"notes":     "Notes",
	"calendar":  "Calendar",
	"reminders": "Reminders",
	"mail":      "Mail",
}

func runDoctor(ctx context.Context, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("doctor takes no arguments")
	}

	cfg, err := loadOrDefault(getConfigPath())
	if err != nil {
		return err
	}
	b, err := bridge.New(cfg, quietLogger(), version)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	cyan := color.New(color.FgCyan)
	failures := 0

	cyan.Println("Privacy grants")
	if b.Probe().FullDiskAccess() {
		pass("full disk access")
	} else {
		failures++
		fail("full disk access", "no protected file is readable")
		hint(color.YellowString("  → %s", "Grant Full Disk Access in System Settings > Privacy & Security"))
	}
	fmt.Println()

	cyan.Println("Automation engine")
	engineCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	out, err := b.Engine().Run(engineCtx, `return "pong"`)
	cancel()
	switch {
	case err != nil:
		failures++
		fail("script round-trip", err.Error())
	case out != "pong":
		failures++
		fail("script round-trip", fmt.Sprintf("unexpected output %q", out))
	default:
		pass("script round-trip")
	}
	fmt.Println()

	cyan.Println("Application automation")
	for _, domain := range b.EnabledDomains() {
		app, ok := automationApps[domain]
		if !ok {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := b.Probe().Automation(probeCtx, b.Engine(), app)
		cancel()
		if err != nil {
			failures++
			reportFault(app, err)
			continue
		}
		pass(app)
	}
	fmt.Println()

	cyan.Println("Storage")
	for _, check := range b.Checks() {
		checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := check.Check(checkCtx)
		cancel()
		if err != nil {
			failures++
			reportFault(check.Name, err)
			continue
		}
		pass(check.Name)
	}
	fmt.Println()

	if failures > 0 {
		return fmt.Errorf("%d check(s) failed", failures)
	}
	color.New(color.FgGreen).Println("All checks passed.")
	return nil
}

func pass(name string) {
	color.New(color.FgGreen).Print("  ✓ ")
	fmt.Println(name)
}

func fail(name, detail string) {
	color.New(color.FgRed).Print("  ✗ ")
	fmt.Printf("%s: %s\n", name, detail)
}

func hint(line string) {
	fmt.Println(line)
}

// reportFault prints a failed check, surfacing the remediation when the
// error carries one.
func reportFault(name string, err error) {
	var f *fault.Fault
	if errors.As(err, &f) {
		fail(name, f.Message)
		if f.Remediation != "" {
			hint(color.YellowString("  → %s", f.Remediation))
		}
		return
	}
	fail(name, err.Error())
}

func runTools(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("tools takes no arguments")
	}

	cfg, err := loadOrDefault(getConfigPath())
	if err != nil {
		return err
	}
	b, err := bridge.New(cfg, quietLogger(), version)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	for _, def := range b.Registry().List(b.EnabledDomains()) {
		color.New(color.FgCyan).Printf("  %-26s", def.Name)
		fmt.Println(def.Description)
	}
	return nil
}
