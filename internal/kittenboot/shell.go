package kittenboot

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// LaunchOutcome is the one decision this whole program exists to make: the
// program we become and its argv. Keeping it a value (instead of exec-ing
// inside the selector) keeps the selection logic testable.
type LaunchOutcome struct {
	Program string
	Argv    []string
}

// launchPlan carries everything the selector needs to pick an invocation.
type launchPlan struct {
	shell          string          // login shell path
	home           string          // effective home directory
	integrationDir string          // <dataDir>/shell-integration
	oneShot        string          // command for a -c invocation, empty for login
	integration    map[string]bool // KITTY_SHELL_INTEGRATION token set
}

func parseIntegrationTokens(val string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.Fields(val) {
		tokens[tok] = true
	}
	return tokens
}

// selectLaunch picks the shell invocation. A one-shot command always wins and
// ignores integration. Otherwise the shell-specific planners get a chance;
// when none of them applies (unsupported shell, no-rc requested, or zsh with
// no startup files) the fallback is a conventional login exec with a dashed
// argv[0].
func selectLaunch(p launchPlan) LaunchOutcome {
	base := filepath.Base(p.shell)

	if p.oneShot != "" {
		os.Unsetenv("KITTY_SHELL_INTEGRATION")
		return LaunchOutcome{Program: p.shell, Argv: []string{base, "-c", p.oneShot}}
	}

	if len(p.integration) > 0 && !p.integration["no-rc"] {
		if out, ok := planShellIntegration(p); ok {
			return out
		}
	}

	os.Unsetenv("KITTY_SHELL_INTEGRATION")
	return LaunchOutcome{Program: p.shell, Argv: []string{"-" + base}}
}

func planShellIntegration(p launchPlan) (LaunchOutcome, bool) {
	switch strings.ToLower(filepath.Base(p.shell)) {
	case "zsh":
		return planZsh(p)
	case "fish":
		return planFish(p)
	case "bash":
		return planBash(p)
	}
	return LaunchOutcome{}, false
}

// planZsh redirects ZDOTDIR at the integration scripts, but only when the
// user already has zsh startup files: a pristine account must still get
// zsh-newuser-install on first login, so it falls through unmodified.
func planZsh(p launchPlan) (LaunchOutcome, bool) {
	zdotdir := os.Getenv("ZDOTDIR")
	if zdotdir == "" {
		zdotdir = p.home
		os.Unsetenv("KITTY_ORIG_ZDOTDIR") // ensure this is not propagated
	} else {
		os.Setenv("KITTY_ORIG_ZDOTDIR", zdotdir)
	}
	for _, rc := range []string{".zshrc", ".zshenv", ".zprofile", ".zlogin"} {
		if _, err := os.Stat(filepath.Join(zdotdir, rc)); err == nil {
			os.Setenv("ZDOTDIR", filepath.Join(p.integrationDir, "zsh"))
			return LaunchOutcome{Program: p.shell, Argv: []string{filepath.Base(p.shell), "-l"}}, true
		}
	}
	os.Unsetenv("KITTY_ORIG_ZDOTDIR") // ensure this is not propagated
	return LaunchOutcome{}, false
}

// planFish exposes the integration directory through XDG_DATA_DIRS; fish
// keeps its own record of which entry is ours so it can strip it again.
func planFish(p launchPlan) (LaunchOutcome, bool) {
	if cur := os.Getenv("XDG_DATA_DIRS"); cur == "" {
		os.Setenv("XDG_DATA_DIRS", p.integrationDir)
	} else {
		os.Setenv("XDG_DATA_DIRS", p.integrationDir+":"+cur)
	}
	os.Setenv("KITTY_FISH_XDG_DATA_DIR", p.integrationDir)
	return LaunchOutcome{Program: p.shell, Argv: []string{filepath.Base(p.shell), "-l"}}, true
}

// planBash runs bash in POSIX mode with ENV pointing at the integration
// script, which re-runs the user's real startup files itself. A default
// HISTFILE is provided so POSIX mode does not lose history; the integration
// script unexports it again downstream.
func planBash(p launchPlan) (LaunchOutcome, bool) {
	os.Setenv("ENV", filepath.Join(p.integrationDir, "bash", "kitty.bash"))
	os.Setenv("KITTY_BASH_INJECT", "1")
	if os.Getenv("HISTFILE") == "" {
		os.Setenv("HISTFILE", filepath.Join(p.home, ".bash_history"))
		os.Setenv("KITTY_BASH_UNEXPORT_HISTFILE", "1")
	}
	return LaunchOutcome{Program: p.shell, Argv: []string{filepath.Base(p.shell), "--posix"}}, true
}

// ExecLaunch replaces the current process. It only ever returns an error: a
// missing binary is rewritten into something a human can act on, anything
// else propagates with its underlying reason.
func ExecLaunch(out LaunchOutcome) error {
	path, err := exec.LookPath(out.Program)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return notFoundError(out.Program)
		}
		return err
	}
	if err := unix.Exec(path, out.Argv, os.Environ()); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return notFoundError(out.Program)
		}
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}

func notFoundError(program string) error {
	return fmt.Errorf("The program: %q was not found", program)
}

func lookPathExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
