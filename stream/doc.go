// File: stream/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package stream implements the byte-stream framing primitives a transport
// uses to decode messages: single bytes, big-endian 32-bit integers,
// encoded strings and opaque objects of a known length.
//
// Every read consumes exactly the requested number of bytes or fails with
// api.ErrEndOfStream. After such a failure the Reader is unusable and keeps
// returning the same error. Readers and Writers are not safe for concurrent
// use.
package stream
