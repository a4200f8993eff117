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

// Package access holds the yes/no access-control decision points consulted
// on every method and event message, plus the integrity-level vocabulary
// checked at side-channel acceptance. The default decider grants all.
//
// A denied outgoing message is suppressed and logged by the caller; a
// denied incoming message is dropped without surfacing an error to the
// application.
package access

import (
	"github.com/sabouaram/memcon/identity"
)

// Decider answers the fifteen access-control check points. Every method
// returns true to allow the message and false to suppress it.
//
// Implementations must be safe for concurrent use: tx points run on
// application threads, rx points on the reactor.
type Decider interface {
	MethodRequestTx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool
	MethodRequestRx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool

	MethodResponseTx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool
	MethodResponseRx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool

	MethodErrorResponseTx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool
	MethodErrorResponseRx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool

	ApplicationErrorResponseTx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool
	ApplicationErrorResponseRx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool

	FireForgetRequestTx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool
	FireForgetRequestRx(instance identity.ProvidedServiceInstanceId, method identity.MethodId, client identity.ClientId) bool

	EventSubscribeTx(instance identity.ProvidedServiceInstanceId, event identity.EventId, client identity.ClientId) bool
	EventUnsubscribeTx(instance identity.ProvidedServiceInstanceId, event identity.EventId, client identity.ClientId) bool

	SubscribeAckTx(instance identity.ProvidedServiceInstanceId, event identity.EventId, client identity.ClientId) bool
	SubscribeNackTx(instance identity.ProvidedServiceInstanceId, event identity.EventId, client identity.ClientId) bool

	EventNotificationTx(instance identity.ProvidedServiceInstanceId, event identity.EventId) bool
}

type allowAll struct{}

// AllowAll returns the default Decider: every check point grants.
func AllowAll() Decider { return allowAll{} }

func (allowAll) MethodRequestTx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) MethodRequestRx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) MethodResponseTx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) MethodResponseRx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) MethodErrorResponseTx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) MethodErrorResponseRx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) ApplicationErrorResponseTx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) ApplicationErrorResponseRx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) FireForgetRequestTx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) FireForgetRequestRx(identity.ProvidedServiceInstanceId, identity.MethodId, identity.ClientId) bool {
	return true
}
func (allowAll) EventSubscribeTx(identity.ProvidedServiceInstanceId, identity.EventId, identity.ClientId) bool {
	return true
}
func (allowAll) EventUnsubscribeTx(identity.ProvidedServiceInstanceId, identity.EventId, identity.ClientId) bool {
	return true
}
func (allowAll) SubscribeAckTx(identity.ProvidedServiceInstanceId, identity.EventId, identity.ClientId) bool {
	return true
}
func (allowAll) SubscribeNackTx(identity.ProvidedServiceInstanceId, identity.EventId, identity.ClientId) bool {
	return true
}
func (allowAll) EventNotificationTx(identity.ProvidedServiceInstanceId, identity.EventId) bool {
	return true
}
