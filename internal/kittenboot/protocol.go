package kittenboot

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Transfer protocol markers. The terminal device carrying the payload is the
// same one the human is typing at, so everything before the start marker is
// treated as noise and buffered, never parsed.
const (
	dataStartMarker = "KITTY_DATA_START"
	dataEndMarker   = "KITTY_DATA_END"
	dataOKMarker    = "OK"
)

// clearLineSeq wipes the current terminal line. Leading noise may have been
// echoed before this process got a chance to turn echo off.
const clearLineSeq = "\r\x1b[K"

// dcsToKitty wraps a message in the terminal's escape protocol:
// ESC P @kitty-<kind> | <base64 payload> ESC \
func dcsToKitty(kind string, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString("\x1bP@kitty-")
	b.WriteString(kind)
	b.WriteByte('|')
	b.WriteString(base64.StdEncoding.EncodeToString(payload))
	b.WriteString("\x1b\\")
	return b.Bytes()
}

// sendDataRequest asks the terminal on the other end of the tty for the
// payload archive. Fire and forget: the reply arrives as ordinary lines on
// the same device and is picked up by receiveData. Echo must already be off,
// otherwise the password would be visible on screen.
func sendDataRequest(w io.Writer) error {
	body := fmt.Sprintf("id=%s:pwfile=%s:pw=%s", RequestID, PasswordFilename, DataPassword)
	if _, err := w.Write(dcsToKitty("ssh", []byte(body))); err != nil {
		return fmt.Errorf("failed to write data request to terminal: %w", err)
	}
	return nil
}

// receiveData reads the framed payload off the terminal: any number of noise
// lines, the start marker, exactly one status line, base64 body lines, the
// end marker. It returns the decoded payload and whatever noise preceded the
// frame. A status line other than "OK" is the sending side reporting failure
// and its text is surfaced verbatim.
func receiveData(r io.Reader) (data []byte, noise []byte, err error) {
	const (
		phaseNoise = iota
		phaseStatus
		phaseBody
	)

	br := bufio.NewReader(r)
	var noiseBuf, body bytes.Buffer
	phase := phaseNoise

	for {
		line, rerr := br.ReadString('\n')
		if line == "" && rerr != nil {
			if rerr == io.EOF {
				return nil, noiseBuf.Bytes(), errors.New("unterminated data stream from terminal")
			}
			return nil, noiseBuf.Bytes(), fmt.Errorf("reading from terminal: %w", rerr)
		}
		trimmed := strings.TrimRight(line, " \t\r\n")

		switch phase {
		case phaseNoise:
			if trimmed == dataStartMarker {
				phase = phaseStatus
			} else {
				noiseBuf.WriteString(trimmed)
			}
		case phaseStatus:
			if trimmed != dataOKMarker {
				return nil, noiseBuf.Bytes(), errors.New(trimmed)
			}
			phase = phaseBody
		case phaseBody:
			if trimmed == dataEndMarker {
				decoded, derr := base64.StdEncoding.DecodeString(body.String())
				if derr != nil {
					return nil, noiseBuf.Bytes(), fmt.Errorf("invalid base64 in data stream: %w", derr)
				}
				return decoded, noiseBuf.Bytes(), nil
			}
			body.WriteString(trimmed)
		}

		if rerr != nil {
			if rerr == io.EOF {
				return nil, noiseBuf.Bytes(), errors.New("unterminated data stream from terminal")
			}
			return nil, noiseBuf.Bytes(), fmt.Errorf("reading from terminal: %w", rerr)
		}
	}
}
