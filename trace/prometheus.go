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
	"strconv"

	prmsdk "github.com/prometheus/client_golang/prometheus"

	"github.com/sabouaram/memcon/identity"
)

// Label values for the point dimension of the method counter.
const (
	pointRequestSend       = "request_send"
	pointRequestReceived   = "request_received"
	pointNoReturnSend      = "request_no_return_send"
	pointNoReturnReceived  = "request_no_return_received"
	pointResponseSend      = "response_send"
	pointResponseReceived  = "response_received"
	pointAppErrorSend      = "application_error_send"
	pointAppErrorReceived  = "application_error_received"
	pointEventSend         = "send"
	pointEventSendAllocate = "send_allocate"
	pointEventReadSample   = "read_sample"
)

// PrometheusSink counts every trace point in prometheus counters: one
// vector for the method-side points labelled (point, instance, method,
// client) and one for the event-side points labelled (point, instance,
// event). Session ids are deliberately not a label, their cardinality is
// unbounded.
type PrometheusSink struct {
	method *prmsdk.CounterVec
	event  *prmsdk.CounterVec
}

// NewPrometheusSink builds the counter vectors and registers them with
// reg. Passing prometheus.DefaultRegisterer wires the sink into the
// process-wide exposition; a fresh Registry isolates it.
func NewPrometheusSink(reg prmsdk.Registerer) (*PrometheusSink, error) {
	method := prmsdk.NewCounterVec(prmsdk.CounterOpts{
		Namespace: "memcon",
		Subsystem: "ipc",
		Name:      "method_messages_total",
		Help:      "Method-side messages traced, by point, service instance, method and client.",
	}, []string{"point", "instance", "method", "client"})

	event := prmsdk.NewCounterVec(prmsdk.CounterOpts{
		Namespace: "memcon",
		Subsystem: "ipc",
		Name:      "event_samples_total",
		Help:      "Event-side samples traced, by point, service instance and event.",
	}, []string{"point", "instance", "event"})

	if reg != nil {
		if err := reg.Register(method); err != nil {
			return nil, err
		}
		if err := reg.Register(event); err != nil {
			return nil, err
		}
	}

	return &PrometheusSink{method: method, event: event}, nil
}

// Describe implements prometheus.Collector.
func (s *PrometheusSink) Describe(ch chan<- *prmsdk.Desc) {
	s.method.Describe(ch)
	s.event.Describe(ch)
}

// Collect implements prometheus.Collector.
func (s *PrometheusSink) Collect(ch chan<- prmsdk.Metric) {
	s.method.Collect(ch)
	s.event.Collect(ch)
}

func (s *PrometheusSink) countMethod(point string, i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) {
	s.method.WithLabelValues(point, i.String(), strconv.Itoa(int(m)), strconv.Itoa(int(c))).Inc()
}

func (s *PrometheusSink) countEvent(point string, i identity.ProvidedServiceInstanceId, e identity.EventId) {
	s.event.WithLabelValues(point, i.String(), strconv.Itoa(int(e))).Inc()
}

func (s *PrometheusSink) MethodRequestSend(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId, _ identity.SessionId) {
	s.countMethod(pointRequestSend, i, m, c)
}

func (s *PrometheusSink) MethodRequestReceived(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId, _ identity.SessionId) {
	s.countMethod(pointRequestReceived, i, m, c)
}

func (s *PrometheusSink) MethodRequestNoReturnSend(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) {
	s.countMethod(pointNoReturnSend, i, m, c)
}

func (s *PrometheusSink) MethodRequestNoReturnReceived(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId) {
	s.countMethod(pointNoReturnReceived, i, m, c)
}

func (s *PrometheusSink) MethodResponseSend(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId, _ identity.SessionId) {
	s.countMethod(pointResponseSend, i, m, c)
}

func (s *PrometheusSink) MethodResponseReceived(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId, _ identity.SessionId) {
	s.countMethod(pointResponseReceived, i, m, c)
}

func (s *PrometheusSink) ApplicationErrorSend(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId, _ identity.SessionId) {
	s.countMethod(pointAppErrorSend, i, m, c)
}

func (s *PrometheusSink) ApplicationErrorReceived(i identity.ProvidedServiceInstanceId, m identity.MethodId, c identity.ClientId, _ identity.SessionId) {
	s.countMethod(pointAppErrorReceived, i, m, c)
}

func (s *PrometheusSink) EventSend(i identity.ProvidedServiceInstanceId, e identity.EventId) {
	s.countEvent(pointEventSend, i, e)
}

func (s *PrometheusSink) EventSendAllocate(i identity.ProvidedServiceInstanceId, e identity.EventId) {
	s.countEvent(pointEventSendAllocate, i, e)
}

func (s *PrometheusSink) EventReadSample(i identity.ProvidedServiceInstanceId, e identity.EventId) {
	s.countEvent(pointEventReadSample, i, e)
}
