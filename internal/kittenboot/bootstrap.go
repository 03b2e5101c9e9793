package kittenboot

import (
	"encoding/base64"
	"fmt"
	"os"

	"lukechampine.com/blake3"
)

// Session threads the bootstrap's state through the pipeline stages instead
// of scattering it across package globals. Created once in Run and consumed
// exactly once by the final exec decision.
type Session struct {
	tty            *TTY
	home           string
	loginShell     string
	dataDir        string
	integrationDir string
}

// Run executes the whole bootstrap pipeline: acquire the terminal, pull and
// install the payload, apply the environment, and decide how to become the
// user's shell. It returns the launch decision rather than exec-ing itself;
// the driver in main does the irreversible part.
func Run() (LaunchOutcome, error) {
	debugf("kittenboot %s (built %s) starting", version, buildDate)

	s := &Session{loginShell: defaultLoginShell()}
	if err := s.resolveHome(); err != nil {
		return LaunchOutcome{}, err
	}

	tty, err := openControllingTTY()
	if err != nil {
		return LaunchOutcome{}, err
	}
	s.tty = tty
	debugSink = tty
	defer func() {
		debugSink = nil
		tty.Release()
	}()

	if RequestData == "1" {
		// Echo off before the request goes out: the control sequence
		// carries the data password.
		if _, err := tty.SetEcho(false); err != nil {
			return LaunchOutcome{}, err
		}
		if err := sendDataRequest(tty); err != nil {
			return LaunchOutcome{}, err
		}
	}

	data, noise, err := receiveData(tty)
	if err != nil {
		return LaunchOutcome{}, err
	}
	if len(noise) > 0 {
		// Bytes sent before this process could turn echo off may have
		// been echoed; wipe the line they landed on.
		os.Stdout.WriteString(clearLineSeq)
	}
	digest := blake3.Sum256(data)
	debugf("payload: %d bytes, blake3 %x", len(data), digest[:8])

	if err := installPayload(data, s); err != nil {
		return LaunchOutcome{}, err
	}

	// The terminal handle must not survive into the shell; echo goes back
	// to its pre-bootstrap state here, on this and every other exit path.
	debugSink = nil
	tty.Release()

	if cwd, ok := popEnv("KITTY_LOGIN_CWD"); ok && cwd != "" {
		if err := os.Chdir(cwd); err != nil {
			cPrintf(colWarn, "Failed to change working directory to: %s with error: %v\n", cwd, err)
		}
	}
	setupCompanionPath(s.dataDir)

	oneShot, err := decodeParam(ExecCmd)
	if err != nil {
		return LaunchOutcome{}, fmt.Errorf("invalid exec command parameter: %w", err)
	}

	plan := launchPlan{
		shell:          s.loginShell,
		home:           s.home,
		integrationDir: s.integrationDir,
		oneShot:        oneShot,
		integration:    parseIntegrationTokens(os.Getenv("KITTY_SHELL_INTEGRATION")),
	}
	return selectLaunch(plan), nil
}

// resolveHome establishes the home directory the whole pipeline works under.
// The sending side may pin it with a link-time parameter; otherwise the
// environment decides.
func (s *Session) resolveHome() error {
	home, err := decodeParam(ExportHomeCmd)
	if err != nil {
		return fmt.Errorf("invalid home directory parameter: %w", err)
	}
	if home != "" {
		if err := os.Chdir(home); err != nil {
			return fmt.Errorf("failed to change to home directory %s: %w", home, err)
		}
	} else {
		home, err = os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
	}
	s.home = home
	return nil
}

// decodeParam decodes a base64 link-time parameter; empty stays empty.
func decodeParam(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(p)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
