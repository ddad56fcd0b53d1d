// Package compress compresses finished collocation outputs in place.
package compress

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	pipeerrors "github.com/felixgeelhaar/hirs-avhrr/internal/errors"
)

// Codec names a compression format.
type Codec string

const (
	None Codec = "none"
	Gzip Codec = "gzip"
	Zstd Codec = "zstd"
)

// Codecs lists the supported codecs.
func Codecs() []Codec {
	return []Codec{None, Gzip, Zstd}
}

// ParseCodec converts a configuration value to a Codec. The empty string
// means None.
func ParseCodec(s string) (Codec, error) {
	switch Codec(s) {
	case "", None:
		return None, nil
	case Gzip, Zstd:
		return Codec(s), nil
	}
	return "", fmt.Errorf("unknown compression codec %q", s)
}

// Extension returns the suffix appended to compressed files.
func Extension(c Codec) string {
	switch c {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// Variants returns every path a product named path may exist under,
// uncompressed first.
func Variants(path string) []string {
	out := []string{path}
	for _, c := range Codecs() {
		if ext := Extension(c); ext != "" {
			out = append(out, path+ext)
		}
	}
	return out
}

// Compress replaces path with its compressed form and returns the new path.
// The compressed file is written to a temporary name in the same directory
// and renamed into place. The original is removed only after the compressed
// file decodes back to the original size. With None the path is returned
// untouched.
func Compress(path string, c Codec) (string, error) {
	if c == None || c == "" {
		return path, nil
	}

	src, err := os.Open(path)
	if err != nil {
		return "", pipeerrors.Wrap(pipeerrors.ErrCodeFileReadFailed, pipeerrors.KindIO,
			fmt.Sprintf("open %s for compression", path), err)
	}
	defer src.Close()
	fi, err := src.Stat()
	if err != nil {
		return "", pipeerrors.Wrap(pipeerrors.ErrCodeFileReadFailed, pipeerrors.KindIO,
			fmt.Sprintf("stat %s", path), err)
	}

	dst := path + Extension(c)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return "", pipeerrors.Wrap(pipeerrors.ErrCodeFileWriteFailed, pipeerrors.KindIO,
			"create temporary compressed file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := encode(tmp, src, c); err != nil {
		tmp.Close()
		return "", pipeerrors.Wrap(pipeerrors.ErrCodeFileWriteFailed, pipeerrors.KindIO,
			fmt.Sprintf("compress %s with %s", path, c), err)
	}
	if err := tmp.Close(); err != nil {
		return "", pipeerrors.Wrap(pipeerrors.ErrCodeFileWriteFailed, pipeerrors.KindIO,
			"close compressed file", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", pipeerrors.Wrap(pipeerrors.ErrCodeFileWriteFailed, pipeerrors.KindIO,
			fmt.Sprintf("rename compressed file to %s", dst), err)
	}
	if err := Verify(dst, fi.Size()); err != nil {
		os.Remove(dst)
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return "", pipeerrors.Wrap(pipeerrors.ErrCodeFileWriteFailed, pipeerrors.KindIO,
			fmt.Sprintf("remove uncompressed %s", path), err)
	}
	return dst, nil
}

func encode(w io.Writer, r io.Reader, c Codec) error {
	var enc io.WriteCloser
	switch c {
	case Gzip:
		gw, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
		if err != nil {
			return err
		}
		enc = gw
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		enc = zw
	default:
		return fmt.Errorf("unknown compression codec %q", c)
	}

	if _, err := io.Copy(enc, r); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Open returns a reader over the decompressed contents of path, choosing the
// codec from its extension.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(path) {
	case Extension(Gzip):
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &readCloser{Reader: gr, close: func() error {
			gr.Close()
			return f.Close()
		}}, nil
	case Extension(Zstd):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &readCloser{Reader: zr, close: func() error {
			zr.Close()
			return f.Close()
		}}, nil
	default:
		return f, nil
	}
}

// Verify decodes the compressed file at path and checks that it holds size
// bytes. A corrupt or truncated stream is an I/O error.
func Verify(path string, size int64) error {
	r, err := Open(path)
	if err != nil {
		return pipeerrors.Wrap(pipeerrors.ErrCodeFileReadFailed, pipeerrors.KindIO,
			fmt.Sprintf("open %s for verification", path), err)
	}
	defer r.Close()

	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return pipeerrors.Wrap(pipeerrors.ErrCodeFileReadFailed, pipeerrors.KindIO,
			fmt.Sprintf("decode %s", path), err)
	}
	if n != size {
		return pipeerrors.New(pipeerrors.ErrCodeFileReadFailed, pipeerrors.KindIO,
			fmt.Sprintf("%s decodes to %d bytes, want %d", path, n, size))
	}
	return nil
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r *readCloser) Close() error { return r.close() }
