/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package router dispatches method and event messages between
// transformation-layer endpoints and connection sinks: proxy-side request
// submission with pending-request correlation, skeleton-side dispatch to
// user hooks, fire-and-forget, and event subscribe/unsubscribe.
package router

import (
	"sync/atomic"

	libcbr "github.com/fxamacker/cbor/v2"

	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/ipcerr"
)

// MessageKind is the protocol-message-header discriminator.
type MessageKind uint8

const (
	KindRequest MessageKind = iota + 1
	KindRequestNoReturn
	KindResponse
	KindErrorResponse
	KindApplicationError
	KindSubscribe
	KindUnsubscribe
	KindSubscribeAck
	KindSubscribeNack
	KindNotification
)

// Envelope is one routed message: the protocol header (Kind), exactly one
// populated specific header, and the opaque payload produced by the
// caller-supplied serializer.
type Envelope struct {
	Kind MessageKind `cbor:"1,keyasint"`

	Request   *identity.RequestHeader          `cbor:"2,keyasint,omitempty"`
	Response  *identity.ResponseHeader         `cbor:"3,keyasint,omitempty"`
	Error     *identity.ErrorResponseHeader    `cbor:"4,keyasint,omitempty"`
	AppError  *identity.ApplicationErrorHeader `cbor:"5,keyasint,omitempty"`
	Subscribe *identity.SubscribeHeader        `cbor:"6,keyasint,omitempty"`
	Notify    *identity.NotificationHeader     `cbor:"7,keyasint,omitempty"`

	Payload []byte `cbor:"8,keyasint,omitempty"`
}

// Packet is a ref-counted, immutable encoded message. It is created with
// one reference; every additional holder takes Ref and drops Unref.
type Packet struct {
	refs atomic.Int32
	env  Envelope
	raw  []byte
}

// NewPacket encodes env into a Packet holding one reference.
func NewPacket(env Envelope) (*Packet, error) {
	raw, err := libcbr.Marshal(env)
	if err != nil {
		return nil, ipcerr.CodeNetworkBindingFailure.Error(err)
	}

	p := &Packet{env: env, raw: raw}
	p.refs.Store(1)
	return p, nil
}

// DecodePacket parses raw into a Packet holding one reference.
func DecodePacket(raw []byte) (*Packet, error) {
	var env Envelope

	if err := libcbr.Unmarshal(raw, &env); err != nil {
		return nil, ipcerr.CodeNetworkBindingFailure.Error(err)
	}

	p := &Packet{env: env, raw: raw}
	p.refs.Store(1)
	return p, nil
}

// Envelope returns the decoded message.
func (p *Packet) Envelope() Envelope {
	return p.env
}

// Bytes returns the encoded form. The slice must not be mutated.
func (p *Packet) Bytes() []byte {
	return p.raw
}

// Ref takes an additional reference.
func (p *Packet) Ref() *Packet {
	p.refs.Add(1)
	return p
}

// Unref drops one reference; the backing buffer is released when the last
// holder lets go.
func (p *Packet) Unref() {
	if p.refs.Add(-1) == 0 {
		p.raw = nil
	}
}

// ConnectionSink accepts outbound packets for one connection. Submit takes
// ownership of the caller's reference.
type ConnectionSink interface {
	Submit(p *Packet) error
}
