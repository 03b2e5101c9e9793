package kittenboot

import (
	"fmt"
	"os"
	"path/filepath"
)

// stagingPrefix makes the private extraction directory recognizable, so a
// crashed bootstrap's leftovers are easy to identify and remove by hand.
const stagingPrefix = ".kitty-ssh-kitten-untar-"

// installPayload extracts the decoded archive into a staging directory under
// home, applies the env manifest, resolves the data directory, compiles
// terminfo and merges the archive's home/ (and, when present, root/) subtree
// into place. The staging directory is removed no matter how far we get;
// every other step is a hard precondition for the next, so a failure aborts
// the bootstrap before the home directory is touched.
func installPayload(data []byte, s *Session) error {
	staging, err := os.MkdirTemp(s.home, stagingPrefix)
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := extractTrusted(data, staging); err != nil {
		return err
	}

	manifest, err := os.ReadFile(filepath.Join(staging, "data.sh"))
	if err != nil {
		return fmt.Errorf("payload has no readable data.sh manifest: %w", err)
	}
	if err := applyEnvManifest(string(manifest)); err != nil {
		return err
	}
	if shell, ok := popEnv("KITTY_LOGIN_SHELL"); ok {
		s.loginShell = shell
	}

	dataDir, ok := popEnv("KITTY_SSH_KITTEN_DATA_DIR")
	if !ok || dataDir == "" {
		return fmt.Errorf("KITTY_SSH_KITTEN_DATA_DIR not set by payload manifest")
	}
	if !filepath.IsAbs(dataDir) {
		dataDir = filepath.Join(s.home, dataDir)
	}
	s.dataDir = filepath.Clean(dataDir)
	s.integrationDir = filepath.Join(s.dataDir, "shell-integration")

	stagedHome := filepath.Join(staging, "home")
	if err := compileTerminfo(stagedHome, s.home); err != nil {
		return err
	}
	if err := moveMerge(stagedHome, s.home); err != nil {
		return err
	}

	// A root/ subtree needs elevated privilege to land; payloads for
	// ordinary users simply do not carry one.
	stagedRoot := filepath.Join(staging, "root")
	if _, err := os.Stat(stagedRoot); err == nil {
		if err := moveMerge(stagedRoot, "/"); err != nil {
			return err
		}
	}
	return nil
}

// setupCompanionPath records where the payload put the companion kitty
// binary and, depending on the KITTY_REMOTE policy, splices that directory
// into PATH: ahead of an existing kitty when forced, at the end when filling
// a gap.
func setupCompanionPath(dataDir string) {
	remote, _ := popEnv("KITTY_REMOTE")
	kittyDir := filepath.Join(dataDir, "kitty", "bin")
	os.Setenv("SSH_KITTEN_KITTY_DIR", kittyDir)

	exists := lookPathExists("kitty")
	if remote == "yes" || (remote == "if-needed" && !exists) {
		sep := string(os.PathListSeparator)
		if exists {
			os.Setenv("PATH", kittyDir+sep+os.Getenv("PATH"))
		} else {
			os.Setenv("PATH", os.Getenv("PATH")+sep+kittyDir)
		}
	}
}
