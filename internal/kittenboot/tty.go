package kittenboot

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// TTY owns the controlling terminal for the duration of the transfer. It is
// the only thing allowed to touch the echo bit, and Release puts echo back
// exactly once no matter how the bootstrap ends.
type TTY struct {
	f           *os.File
	echoOnExit  bool
	releaseOnce sync.Once
}

// openControllingTTY opens /dev/tty read-write with close-on-exec, so the
// handle never leaks into the shell we eventually become.
func openControllingTTY() (*TTY, error) {
	f, err := os.OpenFile("/dev/tty", os.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open controlling terminal: %w", err)
	}
	return &TTY{f: f, echoOnExit: EchoOn == "1"}, nil
}

// SetEcho flips only the echo bit, leaving every other terminal attribute
// alone, and returns the full previous state.
func (t *TTY) SetEcho(on bool) (*unix.Termios, error) {
	fd := int(t.f.Fd())
	tio, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return nil, fmt.Errorf("tcgetattr: %w", err)
	}
	old := *tio
	if on {
		tio.Lflag |= unix.ECHO
	} else {
		tio.Lflag &^= unix.ECHO
	}
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, tio); err != nil {
		return nil, fmt.Errorf("tcsetattr: %w", err)
	}
	return &old, nil
}

// Write pushes data to the terminal, retrying transient would-block and
// interrupted writes. The tty can be in non-blocking mode when the sending
// side set it up that way, so EAGAIN is routine, not an error.
func (t *TTY) Write(p []byte) (int, error) {
	fd := int(t.f.Fd())
	written := 0
	for len(p) > 0 {
		n, err := unix.Write(fd, p)
		if err == unix.EAGAIN || err == unix.EINTR {
			continue
		}
		if err != nil {
			return written, err
		}
		if n == 0 {
			break
		}
		written += n
		p = p[n:]
	}
	return written, nil
}

func (t *TTY) Read(p []byte) (int, error) {
	return t.f.Read(p)
}

// Release restores echo if it was on before the whole bootstrap began, then
// closes the handle. Safe to call multiple times; only the first does work.
// Must run on every exit path before the process execs or dies.
func (t *TTY) Release() {
	t.releaseOnce.Do(func() {
		if t.echoOnExit {
			_, _ = t.SetEcho(true)
		}
		_ = t.f.Close()
	})
}
