// File: stream/reader.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding"

	"github.com/momentics/hioload-fiber/api"
)

// Reader decodes framed values from an io.Reader.
type Reader struct {
	r       io.Reader
	dec     *encoding.Decoder
	objects ObjectDecoder
	buf     []byte
	maxLen  int
	err     error
}

// NewReader wraps r. Strings default to UTF-8 and objects to BytesCodec.
func NewReader(r io.Reader, opts ...Option) *Reader {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Reader{
		r:       r,
		dec:     cfg.encoding.NewDecoder(),
		objects: cfg.decoder,
		buf:     make([]byte, cfg.bufSize),
		maxLen:  cfg.maxLen,
	}
}

// Err returns the error that made the reader unusable, if any.
func (r *Reader) Err() error { return r.err }

// BufferSize returns the current scratch buffer capacity.
func (r *Reader) BufferSize() int { return len(r.buf) }

// fill reads exactly n bytes into the scratch buffer, growing it when
// needed. The returned slice is valid until the next read.
func (r *Reader) fill(n int) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	if n < 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "stream: negative length").WithContext("length", n)
	}
	if r.maxLen > 0 && n > r.maxLen {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "stream: length exceeds limit").
			WithContext("length", n).
			WithContext("limit", r.maxLen)
	}
	if n > len(r.buf) {
		r.buf = make([]byte, n)
	}
	b := r.buf[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = r.fail(n, err)
		return nil, r.err
	}
	return b, nil
}

func (r *Reader) fail(n int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return api.WrapError(api.ErrCodeEndOfStream, fmt.Sprintf("stream: short read of %d bytes", n), err)
	}
	return api.WrapError(api.ErrCodeEndOfStream, "stream: read failed", err)
}

// ReadByteAsInt consumes one byte and returns it as 0..255.
func (r *Reader) ReadByteAsInt() (int, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return int(b[0]), nil
}

// ReadInt consumes four bytes as a signed big-endian integer.
func (r *Reader) ReadInt() (int32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ReadString consumes n bytes and decodes them with the configured text
// encoding.
func (r *Reader) ReadString(n int) (string, error) {
	b, err := r.fill(n)
	if err != nil {
		return "", err
	}
	out, err := r.dec.Bytes(b)
	if err != nil {
		return "", fmt.Errorf("stream: decode string: %w", err)
	}
	return string(out), nil
}

// ReadObject consumes n bytes and hands them to the object decoder.
func (r *Reader) ReadObject(n int) (any, error) {
	b, err := r.fill(n)
	if err != nil {
		return nil, err
	}
	v, err := r.objects.DecodeObject(b)
	if err != nil {
		return nil, fmt.Errorf("stream: decode object: %w", err)
	}
	return v, nil
}

// ReadFrame reads a pair written by Writer.WriteFrame. A frame whose length
// prefix is negative or over the limit leaves the stream mid-frame, so the
// reader fails for good.
func (r *Reader) ReadFrame() (string, any, error) {
	tn, err := r.ReadInt()
	if err != nil {
		return "", nil, err
	}
	topic, err := r.ReadString(int(tn))
	if err != nil {
		return "", nil, r.poison(err)
	}
	on, err := r.ReadInt()
	if err != nil {
		return "", nil, err
	}
	v, err := r.ReadObject(int(on))
	if err != nil {
		return "", nil, r.poison(err)
	}
	return topic, v, nil
}

func (r *Reader) poison(err error) error {
	if r.err == nil && api.CodeOf(err) == api.ErrCodeInvalidArgument {
		r.err = err
	}
	return err
}
