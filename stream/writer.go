// File: stream/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Writer is the encoding side of Reader.

package stream

import (
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/text/encoding"
)

// Writer encodes framed values onto an io.Writer.
type Writer struct {
	w       io.Writer
	enc     *encoding.Encoder
	objects ObjectEncoder
	scratch [4]byte
}

// NewWriter wraps w with the same options as NewReader.
func NewWriter(w io.Writer, opts ...Option) *Writer {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Writer{w: w, enc: cfg.encoding.NewEncoder(), objects: cfg.encoder}
}

// WriteByte writes one byte.
func (w *Writer) WriteByte(b byte) error {
	w.scratch[0] = b
	_, err := w.w.Write(w.scratch[:1])
	return err
}

// WriteInt writes v as four big-endian bytes.
func (w *Writer) WriteInt(v int32) error {
	binary.BigEndian.PutUint32(w.scratch[:], uint32(v))
	_, err := w.w.Write(w.scratch[:])
	return err
}

// EncodeString returns s in the configured text encoding.
func (w *Writer) EncodeString(s string) ([]byte, error) {
	b, err := w.enc.Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("stream: encode string: %w", err)
	}
	return b, nil
}

// WriteString writes s in the configured text encoding and returns the
// number of bytes written.
func (w *Writer) WriteString(s string) (int, error) {
	b, err := w.EncodeString(s)
	if err != nil {
		return 0, err
	}
	return w.w.Write(b)
}

// WriteObject encodes v with the object encoder and returns the number of
// bytes written.
func (w *Writer) WriteObject(v any) (int, error) {
	b, err := w.objects.EncodeObject(v)
	if err != nil {
		return 0, fmt.Errorf("stream: encode object: %w", err)
	}
	return w.w.Write(b)
}

// WriteFrame writes a length-prefixed string followed by a length-prefixed
// object, the layout a topic/message pair travels in.
func (w *Writer) WriteFrame(topic string, v any) error {
	t, err := w.EncodeString(topic)
	if err != nil {
		return err
	}
	o, err := w.objects.EncodeObject(v)
	if err != nil {
		return fmt.Errorf("stream: encode object: %w", err)
	}
	if err := w.WriteInt(int32(len(t))); err != nil {
		return err
	}
	if _, err := w.w.Write(t); err != nil {
		return err
	}
	if err := w.WriteInt(int32(len(o))); err != nil {
		return err
	}
	_, err = w.w.Write(o)
	return err
}
