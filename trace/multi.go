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

package trace

import (
	"github.com/sabouaram/memcon/identity"
)

type multi struct {
	sinks []Sink
}

// MultiSink fans every trace point out to each of the given sinks, in
// order. Nil entries are skipped at construction.
func MultiSink(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return &multi{sinks: out}
}

func (m *multi) MethodRequestSend(i identity.ProvidedServiceInstanceId, md identity.MethodId, c identity.ClientId, s identity.SessionId) {
	for _, snk := range m.sinks {
		snk.MethodRequestSend(i, md, c, s)
	}
}

func (m *multi) MethodRequestReceived(i identity.ProvidedServiceInstanceId, md identity.MethodId, c identity.ClientId, s identity.SessionId) {
	for _, snk := range m.sinks {
		snk.MethodRequestReceived(i, md, c, s)
	}
}

func (m *multi) MethodRequestNoReturnSend(i identity.ProvidedServiceInstanceId, md identity.MethodId, c identity.ClientId) {
	for _, snk := range m.sinks {
		snk.MethodRequestNoReturnSend(i, md, c)
	}
}

func (m *multi) MethodRequestNoReturnReceived(i identity.ProvidedServiceInstanceId, md identity.MethodId, c identity.ClientId) {
	for _, snk := range m.sinks {
		snk.MethodRequestNoReturnReceived(i, md, c)
	}
}

func (m *multi) MethodResponseSend(i identity.ProvidedServiceInstanceId, md identity.MethodId, c identity.ClientId, s identity.SessionId) {
	for _, snk := range m.sinks {
		snk.MethodResponseSend(i, md, c, s)
	}
}

func (m *multi) MethodResponseReceived(i identity.ProvidedServiceInstanceId, md identity.MethodId, c identity.ClientId, s identity.SessionId) {
	for _, snk := range m.sinks {
		snk.MethodResponseReceived(i, md, c, s)
	}
}

func (m *multi) ApplicationErrorSend(i identity.ProvidedServiceInstanceId, md identity.MethodId, c identity.ClientId, s identity.SessionId) {
	for _, snk := range m.sinks {
		snk.ApplicationErrorSend(i, md, c, s)
	}
}

func (m *multi) ApplicationErrorReceived(i identity.ProvidedServiceInstanceId, md identity.MethodId, c identity.ClientId, s identity.SessionId) {
	for _, snk := range m.sinks {
		snk.ApplicationErrorReceived(i, md, c, s)
	}
}

func (m *multi) EventSend(i identity.ProvidedServiceInstanceId, e identity.EventId) {
	for _, snk := range m.sinks {
		snk.EventSend(i, e)
	}
}

func (m *multi) EventSendAllocate(i identity.ProvidedServiceInstanceId, e identity.EventId) {
	for _, snk := range m.sinks {
		snk.EventSendAllocate(i, e)
	}
}

func (m *multi) EventReadSample(i identity.ProvidedServiceInstanceId, e identity.EventId) {
	for _, snk := range m.sinks {
		snk.EventReadSample(i, e)
	}
}
