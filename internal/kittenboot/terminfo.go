package kittenboot

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

const terminfoName = "xterm-kitty"

// compileTerminfo compiles the terminfo source bundled in the payload into
// the staged home's .terminfo tree, so the merge into the real home ships a
// working database. tic missing from PATH is a silent skip: the remote
// terminal type may then simply not resolve, which the user can fix later.
// tic failing is fatal, with its combined output surfaced.
func compileTerminfo(stagedHome, home string) error {
	tic, err := exec.LookPath("tic")
	if err != nil {
		debugf("tic not found, skipping terminfo compilation")
		return nil
	}

	tname := ".terminfo"

	// ncurses hashes entries into single-letter subdirectories; some
	// curses implementations look them up under the hex value of the
	// first byte instead. Provide the hex name as a symlink to the real
	// entry tic is about to create.
	hexDir := fmt.Sprintf("%x", terminfoName[0])
	q := filepath.Join(stagedHome, tname, hexDir, terminfoName)
	if _, err := os.Lstat(q); err != nil {
		if err := os.MkdirAll(filepath.Dir(q), 0o755); err != nil {
			return fmt.Errorf("failed to create terminfo directory: %w", err)
		}
		if err := os.Symlink(filepath.Join("..", terminfoName[:1], terminfoName), q); err != nil {
			return fmt.Errorf("failed to create terminfo symlink: %w", err)
		}
	}

	// NetBSD keeps the database in a cdb file next to the tree.
	if _, err := os.Stat("/usr/share/misc/terminfo.cdb"); err == nil {
		alt := filepath.Join(stagedHome, tname, terminfoName[:1], terminfoName)
		if err := os.MkdirAll(filepath.Dir(alt), 0o755); err != nil {
			return fmt.Errorf("failed to create terminfo directory: %w", err)
		}
		if err := os.Symlink(filepath.Join("..", "..", ".terminfo.cdb"), alt); err != nil && !os.IsExist(err) {
			return fmt.Errorf("failed to create terminfo cdb symlink: %w", err)
		}
		tname += ".cdb"
	}

	os.Setenv("TERMINFO", filepath.Join(home, tname))

	cmd := exec.Command(tic, "-x", "-o",
		filepath.Join(stagedHome, tname),
		filepath.Join(stagedHome, ".terminfo", "kitty.terminfo"))
	out, err := cmd.CombinedOutput()
	if err != nil {
		os.Stderr.Write(out)
		return fmt.Errorf("failed to compile the terminfo database")
	}
	return nil
}
