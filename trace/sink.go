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

// Package trace exposes the message-trace emission surface of the IPC
// binding. Every proxy and skeleton routing path reports its traffic to a
// Sink; the default NopSink drops everything, and MultiSink fans one stream
// out to several sinks.
package trace

import (
	"github.com/sabouaram/memcon/identity"
)

// Sink receives one call per traced message. Method-side points pass the
// immutable request identifiers plus, on the proxy side, the client id;
// event-side points pass the instance and event identifiers.
//
// Implementations must be safe for concurrent use: proxy-side points run on
// application threads while receive points run on the reactor.
type Sink interface {
	MethodRequestSend(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId, session identity.SessionId)
	MethodRequestReceived(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId, session identity.SessionId)

	MethodRequestNoReturnSend(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId)
	MethodRequestNoReturnReceived(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId)

	MethodResponseSend(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId, session identity.SessionId)
	MethodResponseReceived(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId, session identity.SessionId)

	ApplicationErrorSend(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId, session identity.SessionId)
	ApplicationErrorReceived(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId, session identity.SessionId)

	EventSend(instance identity.ProvidedServiceInstanceId, event identity.EventId)
	EventSendAllocate(instance identity.ProvidedServiceInstanceId, event identity.EventId)
	EventReadSample(instance identity.ProvidedServiceInstanceId, event identity.EventId)
}

type nop struct{}

// NopSink returns the Sink used when no tracing is configured. Every point
// is a no-op; it is safe to share one instance process-wide.
func NopSink() Sink { return nop{} }

func (nop) MethodRequestSend(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId, identity.SessionId) {
}
func (nop) MethodRequestReceived(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId, identity.SessionId) {
}
func (nop) MethodRequestNoReturnSend(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) {
}
func (nop) MethodRequestNoReturnReceived(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) {
}
func (nop) MethodResponseSend(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId, identity.SessionId) {
}
func (nop) MethodResponseReceived(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId, identity.SessionId) {
}
func (nop) ApplicationErrorSend(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId, identity.SessionId) {
}
func (nop) ApplicationErrorReceived(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId, identity.SessionId) {
}
func (nop) EventSend(identity.ProvidedServiceInstanceId, identity.EventId)         {}
func (nop) EventSendAllocate(identity.ProvidedServiceInstanceId, identity.EventId) {}
func (nop) EventReadSample(identity.ProvidedServiceInstanceId, identity.EventId)   {}
