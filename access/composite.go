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

package access

import (
	"github.com/sabouaram/memcon/identity"
)

type and struct {
	deciders []Decider
}

// AndDecider combines deciders so a message is allowed only when every
// decider allows it. Evaluation short-circuits on the first denial. Nil
// entries are skipped at construction; with no deciders it behaves like
// AllowAll.
func AndDecider(deciders ...Decider) Decider {
	out := make([]Decider, 0, len(deciders))
	for _, d := range deciders {
		if d != nil {
			out = append(out, d)
		}
	}
	return &and{deciders: out}
}

func (a *and) MethodRequestTx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.MethodRequestTx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) MethodRequestRx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.MethodRequestRx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) MethodResponseTx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.MethodResponseTx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) MethodResponseRx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.MethodResponseRx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) MethodErrorResponseTx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.MethodErrorResponseTx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) MethodErrorResponseRx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.MethodErrorResponseRx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) ApplicationErrorResponseTx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.ApplicationErrorResponseTx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) ApplicationErrorResponseRx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.ApplicationErrorResponseRx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) FireForgetRequestTx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.FireForgetRequestTx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) FireForgetRequestRx(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.FireForgetRequestRx(i, m, c) {
			return false
		}
	}
	return true
}

func (a *and) EventSubscribeTx(i identity.ProvidedServiceInstanceId, e identity.EventId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.EventSubscribeTx(i, e, c) {
			return false
		}
	}
	return true
}

func (a *and) EventUnsubscribeTx(i identity.ProvidedServiceInstanceId, e identity.EventId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.EventUnsubscribeTx(i, e, c) {
			return false
		}
	}
	return true
}

func (a *and) SubscribeAckTx(i identity.ProvidedServiceInstanceId, e identity.EventId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.SubscribeAckTx(i, e, c) {
			return false
		}
	}
	return true
}

func (a *and) SubscribeNackTx(i identity.ProvidedServiceInstanceId, e identity.EventId, c identity.ClientId) bool {
	for _, d := range a.deciders {
		if !d.SubscribeNackTx(i, e, c) {
			return false
		}
	}
	return true
}

func (a *and) EventNotificationTx(i identity.ProvidedServiceInstanceId, e identity.EventId) bool {
	for _, d := range a.deciders {
		if !d.EventNotificationTx(i, e) {
			return false
		}
	}
	return true
}
