package main

import (
	"os"

	"github.com/gookit/color"
	"golang.org/x/term"

	"kittenboot/internal/kittenboot"
)

// The bootstrap either becomes the user's shell or dies with a message; it
// never returns normally. All decision making lives in the internal package
// so it can be tested; this driver only performs the irreversible exec.
func main() {
	outcome, err := kittenboot.Run()
	if err != nil {
		fatal(err)
	}
	if err := kittenboot.ExecLaunch(outcome); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	msg := err.Error()
	if term.IsTerminal(int(os.Stderr.Fd())) {
		msg = color.Error.Sprint(msg)
	}
	os.Stderr.WriteString(msg + "\n")
	os.Exit(1)
}
