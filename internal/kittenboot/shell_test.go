package kittenboot

import (
	"os"
	"path/filepath"
	"testing"
)

// clearShellEnv registers restores for every variable the launch selector
// touches, then unsets them so each test starts clean.
func clearShellEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ZDOTDIR", "KITTY_ORIG_ZDOTDIR", "KITTY_SHELL_INTEGRATION",
		"XDG_DATA_DIRS", "KITTY_FISH_XDG_DATA_DIR",
		"ENV", "KITTY_BASH_INJECT", "HISTFILE", "KITTY_BASH_UNEXPORT_HISTFILE",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func testPlan(t *testing.T, shell string) launchPlan {
	t.Helper()
	home := t.TempDir()
	return launchPlan{
		shell:          shell,
		home:           home,
		integrationDir: filepath.Join(home, ".kitty-data", "shell-integration"),
		integration:    map[string]bool{"enabled": true},
	}
}

func TestSelectLaunchZshFirstRunNotRedirected(t *testing.T) {
	clearShellEnv(t)
	p := testPlan(t, "/usr/bin/zsh")

	out := selectLaunch(p)

	if os.Getenv("ZDOTDIR") != "" {
		t.Fatalf("ZDOTDIR = %q, must stay unset when no startup files exist", os.Getenv("ZDOTDIR"))
	}
	if len(out.Argv) != 1 || out.Argv[0] != "-zsh" {
		t.Fatalf("argv = %v, want the plain login invocation", out.Argv)
	}
}

func TestSelectLaunchZshWithStartupFiles(t *testing.T) {
	clearShellEnv(t)
	p := testPlan(t, "/usr/bin/zsh")
	writeTestFile(t, filepath.Join(p.home, ".zshrc"), "# rc\n")

	out := selectLaunch(p)

	want := filepath.Join(p.integrationDir, "zsh")
	if got := os.Getenv("ZDOTDIR"); got != want {
		t.Fatalf("ZDOTDIR = %q, want %q", got, want)
	}
	if out.Program != "/usr/bin/zsh" {
		t.Fatalf("program = %q", out.Program)
	}
	if len(out.Argv) != 2 || out.Argv[0] != "zsh" || out.Argv[1] != "-l" {
		t.Fatalf("argv = %v, want [zsh -l]", out.Argv)
	}
	if os.Getenv("KITTY_ORIG_ZDOTDIR") != "" {
		t.Fatal("KITTY_ORIG_ZDOTDIR must not be set when ZDOTDIR defaulted to home")
	}
}

func TestSelectLaunchZshPreservesExplicitZdotdir(t *testing.T) {
	clearShellEnv(t)
	p := testPlan(t, "zsh")
	zdot := t.TempDir()
	writeTestFile(t, filepath.Join(zdot, ".zshenv"), "# env\n")
	t.Setenv("ZDOTDIR", zdot)

	out := selectLaunch(p)

	if got := os.Getenv("KITTY_ORIG_ZDOTDIR"); got != zdot {
		t.Fatalf("KITTY_ORIG_ZDOTDIR = %q, want %q", got, zdot)
	}
	if len(out.Argv) != 2 || out.Argv[1] != "-l" {
		t.Fatalf("argv = %v", out.Argv)
	}
}

func TestSelectLaunchOneShotAlwaysWins(t *testing.T) {
	clearShellEnv(t)
	t.Setenv("KITTY_SHELL_INTEGRATION", "enabled")

	for _, shell := range []string{"/bin/zsh", "/usr/bin/fish", "/bin/bash", "/bin/weirdsh"} {
		p := testPlan(t, shell)
		p.oneShot = "uptime"

		out := selectLaunch(p)

		base := filepath.Base(shell)
		if len(out.Argv) != 3 || out.Argv[0] != base || out.Argv[1] != "-c" || out.Argv[2] != "uptime" {
			t.Fatalf("%s: argv = %v, want [%s -c uptime]", shell, out.Argv, base)
		}
	}
	if _, ok := os.LookupEnv("KITTY_SHELL_INTEGRATION"); ok {
		t.Fatal("KITTY_SHELL_INTEGRATION must be unset for a one-shot command")
	}
}

func TestSelectLaunchNoRCSkipsIntegration(t *testing.T) {
	clearShellEnv(t)
	p := testPlan(t, "/bin/bash")
	p.integration = parseIntegrationTokens("no-rc enabled")

	out := selectLaunch(p)

	if os.Getenv("KITTY_BASH_INJECT") != "" {
		t.Fatal("bash integration ran despite no-rc")
	}
	if len(out.Argv) != 1 || out.Argv[0] != "-bash" {
		t.Fatalf("argv = %v, want bare login exec", out.Argv)
	}
	if _, ok := os.LookupEnv("KITTY_SHELL_INTEGRATION"); ok {
		t.Fatal("KITTY_SHELL_INTEGRATION must be unset on the fallback path")
	}
}

func TestSelectLaunchFish(t *testing.T) {
	clearShellEnv(t)
	t.Setenv("XDG_DATA_DIRS", "/usr/share")
	p := testPlan(t, "/usr/bin/fish")

	out := selectLaunch(p)

	if got := os.Getenv("XDG_DATA_DIRS"); got != p.integrationDir+":/usr/share" {
		t.Fatalf("XDG_DATA_DIRS = %q", got)
	}
	if got := os.Getenv("KITTY_FISH_XDG_DATA_DIR"); got != p.integrationDir {
		t.Fatalf("KITTY_FISH_XDG_DATA_DIR = %q", got)
	}
	if len(out.Argv) != 2 || out.Argv[0] != "fish" || out.Argv[1] != "-l" {
		t.Fatalf("argv = %v", out.Argv)
	}
}

func TestSelectLaunchFishNoExistingXDGDataDirs(t *testing.T) {
	clearShellEnv(t)
	p := testPlan(t, "fish")

	selectLaunch(p)

	if got := os.Getenv("XDG_DATA_DIRS"); got != p.integrationDir {
		t.Fatalf("XDG_DATA_DIRS = %q, want just the integration dir", got)
	}
}

func TestSelectLaunchBash(t *testing.T) {
	clearShellEnv(t)
	p := testPlan(t, "/usr/local/bin/bash")

	out := selectLaunch(p)

	if got := os.Getenv("ENV"); got != filepath.Join(p.integrationDir, "bash", "kitty.bash") {
		t.Fatalf("ENV = %q", got)
	}
	if os.Getenv("KITTY_BASH_INJECT") != "1" {
		t.Fatal("KITTY_BASH_INJECT not set")
	}
	if got := os.Getenv("HISTFILE"); got != filepath.Join(p.home, ".bash_history") {
		t.Fatalf("HISTFILE = %q", got)
	}
	if os.Getenv("KITTY_BASH_UNEXPORT_HISTFILE") != "1" {
		t.Fatal("KITTY_BASH_UNEXPORT_HISTFILE not set")
	}
	// argv[0] is the real shell basename, not a hardcoded word
	if len(out.Argv) != 2 || out.Argv[0] != "bash" || out.Argv[1] != "--posix" {
		t.Fatalf("argv = %v, want [bash --posix]", out.Argv)
	}
}

func TestSelectLaunchBashKeepsConfiguredHistfile(t *testing.T) {
	clearShellEnv(t)
	t.Setenv("HISTFILE", "/custom/history")
	p := testPlan(t, "bash")

	selectLaunch(p)

	if got := os.Getenv("HISTFILE"); got != "/custom/history" {
		t.Fatalf("HISTFILE = %q, must not be overridden", got)
	}
	if os.Getenv("KITTY_BASH_UNEXPORT_HISTFILE") != "" {
		t.Fatal("KITTY_BASH_UNEXPORT_HISTFILE set despite configured HISTFILE")
	}
}

func TestSelectLaunchUnsupportedShellFallsThrough(t *testing.T) {
	clearShellEnv(t)
	p := testPlan(t, "/bin/tcsh")

	out := selectLaunch(p)

	if len(out.Argv) != 1 || out.Argv[0] != "-tcsh" {
		t.Fatalf("argv = %v, want [-tcsh]", out.Argv)
	}
}

func TestParseIntegrationTokens(t *testing.T) {
	tokens := parseIntegrationTokens("  enabled   no-rc ")
	if !tokens["enabled"] || !tokens["no-rc"] || len(tokens) != 2 {
		t.Fatalf("tokens = %v", tokens)
	}
	if len(parseIntegrationTokens("")) != 0 {
		t.Fatal("empty value must produce no tokens")
	}
}
