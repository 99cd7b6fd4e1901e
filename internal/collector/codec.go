package collector

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Encoding is the Content-Encoding applied to request bodies
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingDeflate  Encoding = "deflate"
	EncodingGzip     Encoding = "gzip"
)

// ParseEncoding validates a configured content encoding. Empty means identity.
func ParseEncoding(s string) (Encoding, error) {
	switch enc := Encoding(strings.ToLower(strings.TrimSpace(s))); enc {
	case "", EncodingIdentity:
		return EncodingIdentity, nil
	case EncodingDeflate, EncodingGzip:
		return enc, nil
	default:
		return "", fmt.Errorf("unsupported content encoding %q", s)
	}
}

// marshalArgs encodes positional arguments as a JSON array
func marshalArgs(args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	return sonic.Marshal(args)
}

// compress applies enc to payload
func compress(enc Encoding, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	var w io.WriteCloser

	switch enc {
	case EncodingIdentity, "":
		return payload, nil
	case EncodingDeflate:
		w = zlib.NewWriter(&buf)
	case EncodingGzip:
		w = gzip.NewWriter(&buf)
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}

	if _, err := w.Write(payload); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decompress reverses a response Content-Encoding
func decompress(enc string, body []byte) ([]byte, error) {
	var r io.ReadCloser
	var err error

	switch Encoding(strings.ToLower(strings.TrimSpace(enc))) {
	case "", EncodingIdentity:
		return body, nil
	case EncodingDeflate:
		r, err = zlib.NewReader(bytes.NewReader(body))
	case EncodingGzip:
		r, err = gzip.NewReader(bytes.NewReader(body))
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
