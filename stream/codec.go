// File: stream/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Object codecs turn a framed byte range into a domain value and back. The
// byte layout belongs to the codec, the stream only delimits it.

package stream

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// ObjectDecoder builds a value from b. b is only valid during the call.
type ObjectDecoder interface {
	DecodeObject(b []byte) (any, error)
}

// ObjectEncoder renders v as bytes.
type ObjectEncoder interface {
	EncodeObject(v any) ([]byte, error)
}

// DecoderFunc adapts a function to ObjectDecoder.
type DecoderFunc func(b []byte) (any, error)

// DecodeObject calls fn(b).
func (fn DecoderFunc) DecodeObject(b []byte) (any, error) { return fn(b) }

// EncoderFunc adapts a function to ObjectEncoder.
type EncoderFunc func(v any) ([]byte, error)

// EncodeObject calls fn(v).
func (fn EncoderFunc) EncodeObject(v any) ([]byte, error) { return fn(v) }

// BytesCodec passes raw bytes through, copying on decode.
type BytesCodec struct{}

func (BytesCodec) DecodeObject(b []byte) (any, error) {
	return append([]byte(nil), b...), nil
}

func (BytesCodec) EncodeObject(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("stream: BytesCodec cannot encode %T", v)
	}
	return b, nil
}

// StringCodec maps strings to bytes in a text encoding. The zero value uses
// UTF-8.
type StringCodec struct {
	Encoding encoding.Encoding
}

func (c StringCodec) enc() encoding.Encoding {
	if c.Encoding == nil {
		return unicode.UTF8
	}
	return c.Encoding
}

func (c StringCodec) DecodeObject(b []byte) (any, error) {
	out, err := c.enc().NewDecoder().Bytes(b)
	if err != nil {
		return nil, fmt.Errorf("stream: decode string: %w", err)
	}
	return string(out), nil
}

func (c StringCodec) EncodeObject(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("stream: StringCodec cannot encode %T", v)
	}
	out, err := c.enc().NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("stream: encode string: %w", err)
	}
	return []byte(out), nil
}
