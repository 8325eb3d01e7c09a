package cache

import (
	"encoding/gob"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec turns records into bytes and back. Implementations must be safe
// for concurrent use.
type Codec interface {
	// Ext is the file extension of entries written by this codec, without
	// the leading dot.
	Ext() string
	Encode(w io.Writer, v any) error
	Decode(r io.Reader, v any) error
}

// Compression selects the stream compression of GobCodec.
type Compression string

const (
	CompressZstd Compression = "zstd"
	CompressGzip Compression = "gzip"
	CompressNone Compression = "none"
)

// ParseCompression accepts "zstd", "gzip" or "none" (case-insensitive);
// the empty string means zstd.
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(strings.TrimSpace(s))); c {
	case "":
		return CompressZstd, nil
	case CompressZstd, CompressGzip, CompressNone:
		return c, nil
	}
	return "", fmt.Errorf("cache: unknown compression %q", s)
}

// GobCodec encodes with encoding/gob inside an optional compressed stream.
// The zero value uses zstd. Decoding follows gob's rules, so empty slices
// and maps decode as nil and unexported struct fields are dropped.
type GobCodec struct {
	Compression Compression
}

var _ Codec = GobCodec{}

func (c GobCodec) Ext() string {
	switch c.Compression {
	case CompressGzip:
		return "gob.gz"
	case CompressNone:
		return "gob"
	default:
		return "gob.zst"
	}
}

func (c GobCodec) Encode(w io.Writer, v any) error {
	switch c.Compression {
	case CompressNone:
		return gob.NewEncoder(w).Encode(v)

	case CompressGzip:
		zw := gzip.NewWriter(w)
		if err := gob.NewEncoder(zw).Encode(v); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()

	default:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if err := gob.NewEncoder(zw).Encode(v); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	}
}

func (c GobCodec) Decode(r io.Reader, v any) error {
	switch c.Compression {
	case CompressNone:
		return gob.NewDecoder(r).Decode(v)

	case CompressGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return err
		}
		defer zr.Close()
		return gob.NewDecoder(zr).Decode(v)

	default:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return err
		}
		defer zr.Close()
		return gob.NewDecoder(zr).Decode(v)
	}
}
