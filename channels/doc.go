// File: channels/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package channels provides typed in-process publish/subscribe.
//
// A Channel[T] broadcasts every published message to the subscriptions that
// exist at the moment of the Publish call. Each subscription is bound to a
// fiber and its callback always runs on that fiber, so callbacks of one
// subscriber never race with each other. Publish never waits for a callback.
//
// Subscriptions are tied to the fiber lifecycle through a disposer: when the
// fiber stops, its subscriptions disappear from every channel without an
// explicit Unsubscribe. Channels themselves outlive the fibers using them.
//
// Besides plain subscriptions the package offers filtered, batching,
// keyed-batching and conflating ("last value") subscribers, and a
// request/reply helper built from a channel and a one-shot timer.
package channels
