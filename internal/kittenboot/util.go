package kittenboot

import (
	"fmt"
	"io"
	"os"
)

// color-compatible printer interface (works with *color.Theme and *color.Style)
type colorPrinter interface {
	Printf(format string, a ...any)
	Println(a ...any)
}

// cPrintf prints with a colored style or falls back to fmt.Printf when nil
func cPrintf(p colorPrinter, format string, a ...any) {
	if p == nil {
		fmt.Printf(format, a...)
		return
	}
	p.Printf(format, a...)
}

// debugSink is the terminal the debug channel writes to while the session
// holds it open. When nil, debugf opens /dev/tty for the single message.
var debugSink io.Writer

// debugf routes diagnostics to the terminal emulator itself over the
// @kitty-print escape channel, so they survive even when stdout is being
// used for the transfer. Gated by the WantDebug link-time flag.
func debugf(format string, args ...any) {
	if WantDebug != "1" {
		return
	}
	msg := dcsToKitty("print", fmt.Appendf(nil, "debug: "+format, args...))
	if debugSink != nil {
		_, _ = debugSink.Write(msg)
		return
	}
	f, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(msg)
}

// popEnv reads and removes an environment variable in one step.
func popEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if ok {
		os.Unsetenv(key)
	}
	return v, ok
}
