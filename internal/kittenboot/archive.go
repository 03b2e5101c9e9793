package kittenboot

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

// Compression magic numbers. The payload arrives as raw bytes with no
// filename, so sniff instead of looking at extensions.
var (
	magicGzip = []byte{0x1f, 0x8b}
	magicZstd = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicXz   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// payloadReader wraps the decoded payload in the right decompressor. A plain
// tar stream passes through untouched.
func payloadReader(data []byte) (io.Reader, error) {
	br := bytes.NewReader(data)
	switch {
	case bytes.HasPrefix(data, magicGzip):
		gz, err := pgzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader for payload: %w", err)
		}
		return gz, nil
	case bytes.HasPrefix(data, magicZstd):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader for payload: %w", err)
		}
		return zr.IOReadCloser(), nil
	case bytes.HasPrefix(data, magicXz):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to create xz reader for payload: %w", err)
		}
		return xr, nil
	default:
		return br, nil
	}
}

// extractTrusted unpacks the payload archive into dest. The archive comes
// from the same party that controls the transport, so symlinks are recreated
// verbatim even when they point at absolute paths outside dest; rejecting
// them would break the terminfo tree the payload ships.
func extractTrusted(data []byte, dest string) error {
	r, err := payloadReader(data)
	if err != nil {
		return err
	}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("unreadable payload archive: %w", err)
		}

		target := filepath.Join(dest, hdr.Name)
		mode := os.FileMode(hdr.Mode & 0o7777)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, mode.Perm()|0o700); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", target, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create parent of %s: %w", target, err)
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", target, err)
			}
		case tar.TypeLink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create parent of %s: %w", target, err)
			}
			_ = os.Remove(target)
			if err := os.Link(filepath.Join(dest, hdr.Linkname), target); err != nil {
				return fmt.Errorf("failed to create hard link %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("failed to create parent of %s: %w", target, err)
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
			_, cerr := io.Copy(out, tr)
			out.Close()
			if cerr != nil {
				return fmt.Errorf("failed to write %s: %w", target, cerr)
			}
			if !hdr.ModTime.IsZero() {
				_ = os.Chtimes(target, hdr.ModTime, hdr.ModTime)
			}
		default:
			// Character devices, fifos and friends have no business in a
			// shell-integration payload; skip rather than fail.
			debugf("skipping archive entry %s (type %d)", hdr.Name, hdr.Typeflag)
		}
	}
}
