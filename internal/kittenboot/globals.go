package kittenboot

import (
	"github.com/gookit/color"
)

// Link-time parameters. The bootstrap binary takes no argv: the sending side
// substitutes these with -ldflags -X when it builds the payload, so a stray
// exec of the binary carries no secrets on the command line.
var (
	// RequestData is "1" when the bootstrap must actively ask the terminal
	// for the payload instead of waiting for an unsolicited push.
	RequestData = "0"

	// RequestID, PasswordFilename and DataPassword authenticate the data
	// request against the sending terminal.
	RequestID        = ""
	PasswordFilename = ""
	DataPassword     = ""

	// EchoOn is "1" when terminal echo was on before the bootstrap started
	// and must be switched back on before handing over to the shell.
	EchoOn = "0"

	// ExportHomeCmd optionally carries the remote home directory,
	// base64-encoded. Empty means "use the environment".
	ExportHomeCmd = ""

	// ExecCmd optionally carries a one-shot command to run instead of a
	// login shell, base64-encoded.
	ExecCmd = ""

	// WantDebug is "1" to route diagnostics to the terminal emulator over
	// the @kitty-print escape channel.
	WantDebug = "0"

	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
)

// color helpers
var colWarn = color.Warn
