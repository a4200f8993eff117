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

package router

import (
	"sync"

	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/log"
)

// EventRegistry is the skeleton-side event table of one provided service
// instance: which clients are subscribed to which event, and the fan-out
// of notifications to them.
type EventRegistry struct {
	router *SkeletonRouter
	logc   log.Logger

	mu     sync.Mutex
	events map[identity.EventId]map[identity.ClientId]ConnectionSink
}

// NewEventRegistry attaches an event table to r.
func NewEventRegistry(r *SkeletonRouter) *EventRegistry {
	return &EventRegistry{
		router: r,
		logc:   r.logc,
		events: make(map[identity.EventId]map[identity.ClientId]ConnectionSink),
	}
}

// HandleSubscribe processes an incoming subscribe packet arriving on
// conn, answering with an ack or a nack. A subscribe while the instance
// is not offered is nacked.
func (e *EventRegistry) HandleSubscribe(h identity.SubscribeHeader, conn ConnectionSink) error {
	if !e.router.IsOffered() {
		return e.sendSubscribeResult(h, conn, false)
	}

	e.mu.Lock()
	subs, ok := e.events[h.Event]
	if !ok {
		subs = make(map[identity.ClientId]ConnectionSink)
		e.events[h.Event] = subs
	}
	subs[h.Client] = conn
	e.mu.Unlock()

	return e.sendSubscribeResult(h, conn, true)
}

// HandleUnsubscribe removes a subscription. Unsubscribing a client that
// never subscribed is a no-op.
func (e *EventRegistry) HandleUnsubscribe(h identity.SubscribeHeader) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if subs, ok := e.events[h.Event]; ok {
		delete(subs, h.Client)
	}
}

// SubscriberCount reports how many clients are subscribed to event.
func (e *EventRegistry) SubscriberCount(event identity.EventId) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.events[event])
}

// NotifyEvent fans one notification out to every subscriber of event. The
// access decider is asked once per event, not per client: a denial
// suppresses the whole fan-out. The first submit error is returned after
// the fan-out completes.
func (e *EventRegistry) NotifyEvent(event identity.EventId, payload []byte) error {
	if !e.router.acc.EventNotificationTx(e.router.instance, event) {
		e.logc.WithField("event", event).Warn("outgoing event notification denied")
		return nil
	}

	e.mu.Lock()
	sinks := make([]ConnectionSink, 0, len(e.events[event]))
	for _, conn := range e.events[event] {
		sinks = append(sinks, conn)
	}
	e.mu.Unlock()

	if len(sinks) == 0 {
		return nil
	}

	e.router.trc.EventSend(e.router.instance, event)

	var firstErr error

	for _, conn := range sinks {
		pkt, err := NewPacket(Envelope{
			Kind: KindNotification,
			Notify: &identity.NotificationHeader{
				Instance: e.router.instance,
				Event:    event,
			},
			Payload: payload,
		})
		if err != nil {
			return err
		}

		if err = conn.Submit(pkt); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (e *EventRegistry) sendSubscribeResult(h identity.SubscribeHeader, conn ConnectionSink, ack bool) error {
	kind := KindSubscribeAck

	if ack {
		if !e.router.acc.SubscribeAckTx(e.router.instance, h.Event, h.Client) {
			e.logc.WithField("event", h.Event).Warn("outgoing subscribe ack denied")
			return nil
		}
	} else {
		kind = KindSubscribeNack
		if !e.router.acc.SubscribeNackTx(e.router.instance, h.Event, h.Client) {
			e.logc.WithField("event", h.Event).Warn("outgoing subscribe nack denied")
			return nil
		}
	}

	pkt, err := NewPacket(Envelope{
		Kind: kind,
		Subscribe: &identity.SubscribeHeader{
			Instance: h.Instance,
			Event:    h.Event,
			Client:   h.Client,
		},
	})
	if err != nil {
		return err
	}

	return conn.Submit(pkt)
}

// SubscriptionState is the proxy-side view of one event subscription.
type SubscriptionState uint8

const (
	SubscriptionIdle SubscriptionState = iota
	SubscriptionPending
	SubscriptionActive
)

// ProxyEventBackend drives the subscribe/unsubscribe path of one event
// from the proxy side and tracks the acknowledged state.
type ProxyEventBackend struct {
	cfg   ProxyMethodConfig
	event identity.EventId

	mu    sync.Mutex
	state SubscriptionState

	// OnNotification runs on the reactor for every received event sample.
	OnNotification func(payload []byte)
}

// NewProxyEventBackend builds the subscription driver for event.
func NewProxyEventBackend(cfg ProxyMethodConfig, event identity.EventId) *ProxyEventBackend {
	cfg.fillDefaults()
	return &ProxyEventBackend{cfg: cfg, event: event}
}

// State returns the current subscription state.
func (b *ProxyEventBackend) State() SubscriptionState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Subscribe submits a subscribe request and moves to the pending state
// until the ack or nack arrives. A denied subscribe is suppressed.
func (b *ProxyEventBackend) Subscribe() error {
	if !b.cfg.Access.EventSubscribeTx(b.cfg.Instance, b.event, b.cfg.Client) {
		b.cfg.Log.WithField("event", b.event).Warn("outgoing subscribe denied")
		return nil
	}

	pkt, err := NewPacket(Envelope{
		Kind: KindSubscribe,
		Subscribe: &identity.SubscribeHeader{
			Instance: b.cfg.Instance,
			Event:    b.event,
			Client:   b.cfg.Client,
		},
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.state = SubscriptionPending
	b.mu.Unlock()

	return b.cfg.Sink.Submit(pkt)
}

// Unsubscribe submits an unsubscribe request and returns to the idle
// state immediately: no acknowledgement flows for unsubscribes.
func (b *ProxyEventBackend) Unsubscribe() error {
	if !b.cfg.Access.EventUnsubscribeTx(b.cfg.Instance, b.event, b.cfg.Client) {
		b.cfg.Log.WithField("event", b.event).Warn("outgoing unsubscribe denied")
		return nil
	}

	pkt, err := NewPacket(Envelope{
		Kind: KindUnsubscribe,
		Subscribe: &identity.SubscribeHeader{
			Instance: b.cfg.Instance,
			Event:    b.event,
			Client:   b.cfg.Client,
		},
	})
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.state = SubscriptionIdle
	b.mu.Unlock()

	return b.cfg.Sink.Submit(pkt)
}

// OnSubscribeAck records a granted subscription. Runs on the reactor.
func (b *ProxyEventBackend) OnSubscribeAck() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == SubscriptionPending {
		b.state = SubscriptionActive
	}
}

// OnSubscribeNack records a refused subscription. Runs on the reactor.
func (b *ProxyEventBackend) OnSubscribeNack() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == SubscriptionPending {
		b.state = SubscriptionIdle
	}
}

// OnEventNotification delivers one received sample to the application
// callback. Samples arriving with no callback installed are dropped.
func (b *ProxyEventBackend) OnEventNotification(payload []byte) {
	b.cfg.Trace.EventReadSample(b.cfg.Instance, b.event)

	if b.OnNotification != nil {
		b.OnNotification(payload)
	}
}
