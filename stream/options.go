// File: stream/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/control"
)

// DefaultBufferSize is the initial capacity of the Reader scratch buffer.
const DefaultBufferSize = 64 * 1024

type config struct {
	encoding encoding.Encoding
	decoder  ObjectDecoder
	encoder  ObjectEncoder
	bufSize  int
	maxLen   int
}

func defaultConfig() config {
	return config{
		encoding: unicode.UTF8,
		decoder:  BytesCodec{},
		encoder:  BytesCodec{},
		bufSize:  DefaultBufferSize,
	}
}

// Option configures a Reader or Writer.
type Option func(*config)

// WithEncoding sets the text encoding of strings.
func WithEncoding(e encoding.Encoding) Option {
	return func(c *config) {
		if e != nil {
			c.encoding = e
		}
	}
}

// WithDecoder sets the object decoder used by ReadObject.
func WithDecoder(d ObjectDecoder) Option {
	return func(c *config) {
		if d != nil {
			c.decoder = d
		}
	}
}

// WithEncoder sets the object encoder used by WriteObject.
func WithEncoder(e ObjectEncoder) Option {
	return func(c *config) {
		if e != nil {
			c.encoder = e
		}
	}
}

// WithBufferSize sets the initial scratch buffer capacity.
func WithBufferSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.bufSize = n
		}
	}
}

// WithMaxLength rejects reads longer than n bytes with
// api.ErrInvalidArgument before any buffer is allocated. n <= 0 removes the
// cap.
func WithMaxLength(n int) Option {
	return func(c *config) { c.maxLen = max(n, 0) }
}

// EncodingByName resolves an IANA charset name such as "utf-8" or
// "iso-8859-1".
func EncodingByName(name string) (encoding.Encoding, error) {
	e, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, api.WrapError(api.ErrCodeInvalidArgument, "stream: unknown encoding "+name, err)
	}
	if e == nil {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "stream: unsupported encoding "+name)
	}
	return e, nil
}

// OptionsFromConfig translates runtime stream configuration into options.
func OptionsFromConfig(cfg control.StreamConfig) ([]Option, error) {
	opts := []Option{WithBufferSize(cfg.InitialBuffer), WithMaxLength(cfg.MaxLength)}
	if cfg.Encoding != "" {
		e, err := EncodingByName(cfg.Encoding)
		if err != nil {
			return nil, fmt.Errorf("stream config: %w", err)
		}
		opts = append(opts, WithEncoding(e))
	}
	return opts, nil
}
