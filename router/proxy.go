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

	"github.com/sabouaram/memcon/access"
	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/ipcerr"
	"github.com/sabouaram/memcon/log"
	"github.com/sabouaram/memcon/trace"
)

// responseSink is the reactor-facing side of one proxy method backend.
type responseSink interface {
	OnResponseReceived(h identity.ResponseHeader, payload []byte)
	OnErrorResponse(h identity.ErrorResponseHeader)
	OnApplicationError(h identity.ApplicationErrorHeader, ae identity.ApplicationError)
	cancelAll()
}

// ProxyRouter routes incoming response-side packets of one service
// instance to the method backend that issued the request.
type ProxyRouter struct {
	logc log.Logger

	mu      sync.Mutex
	methods map[identity.MethodId]responseSink
}

// NewProxyRouter returns an empty router for one service instance.
func NewProxyRouter(l log.Logger) *ProxyRouter {
	if l == nil {
		l = log.Discard()
	}
	return &ProxyRouter{
		logc:    l,
		methods: make(map[identity.MethodId]responseSink),
	}
}

func (r *ProxyRouter) register(m identity.MethodId, s responseSink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.methods[m]; ok {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("method %d already registered", m)
	}

	r.methods[m] = s
	return nil
}

func (r *ProxyRouter) deregister(m identity.MethodId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.methods, m)
}

func (r *ProxyRouter) lookup(m identity.MethodId) (responseSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.methods[m]
	return s, ok
}

// DispatchPacket delivers one incoming packet on the reactor. Unroutable
// packets are logged and dropped. The router consumes the caller's
// packet reference.
func (r *ProxyRouter) DispatchPacket(p *Packet) {
	defer p.Unref()

	env := p.Envelope()

	switch env.Kind {
	case KindResponse:
		if env.Response == nil {
			r.logc.Warn("response packet without response header")
			return
		}
		if s, ok := r.lookup(env.Response.Method); ok {
			s.OnResponseReceived(*env.Response, env.Payload)
			return
		}
		r.logc.WithField("method", env.Response.Method).Warn("response for unknown method")

	case KindErrorResponse:
		if env.Error == nil {
			r.logc.Warn("error response packet without header")
			return
		}
		if s, ok := r.lookup(env.Error.Method); ok {
			s.OnErrorResponse(*env.Error)
			return
		}
		r.logc.WithField("method", env.Error.Method).Warn("error response for unknown method")

	case KindApplicationError:
		if env.AppError == nil {
			r.logc.Warn("application error packet without header")
			return
		}

		ae, err := identity.DeserializeApplicationError(env.Payload)
		if err != nil {
			r.logc.WithField("error", err.Error()).Warn("undecodable application error payload")
			return
		}

		if s, ok := r.lookup(env.AppError.Method); ok {
			s.OnApplicationError(*env.AppError, ae)
			return
		}
		r.logc.WithField("method", env.AppError.Method).Warn("application error for unknown method")

	default:
		r.logc.WithField("kind", uint8(env.Kind)).Warn("unroutable packet kind on proxy side")
	}
}

// SetConnectionState reports the transport availability. A transition to
// down cancels every pending request of every registered backend.
func (r *ProxyRouter) SetConnectionState(up bool) {
	if up {
		return
	}

	r.mu.Lock()
	sinks := make([]responseSink, 0, len(r.methods))
	for _, s := range r.methods {
		sinks = append(sinks, s)
	}
	r.mu.Unlock()

	for _, s := range sinks {
		s.cancelAll()
	}
}

// ProxyMethodConfig carries the collaborators of one proxy method
// backend. Trace and Access fall back to the no-op/grant-all defaults.
type ProxyMethodConfig struct {
	Log      log.Logger
	Instance identity.ProvidedServiceInstanceId
	Client   identity.ClientId
	Method   identity.MethodId
	Router   *ProxyRouter
	Sink     ConnectionSink
	Trace    trace.Sink
	Access   access.Decider
	AppError *ApplicationErrorTable
	Sessions *identity.SessionGenerator
}

func (c *ProxyMethodConfig) fillDefaults() {
	if c.Log == nil {
		c.Log = log.Discard()
	}
	if c.Trace == nil {
		c.Trace = trace.NopSink()
	}
	if c.Access == nil {
		c.Access = access.AllowAll()
	}
	if c.Sessions == nil {
		c.Sessions = identity.NewSessionGenerator(0)
	}
}

// ProxyMethodBackend submits requests for one method of one service
// instance and correlates responses back to futures. Out is the decoded
// response type produced by the configured deserializer.
type ProxyMethodBackend[Out any] struct {
	cfg         ProxyMethodConfig
	deserialize func([]byte) (Out, error)
	pending     *PendingRequestMap[Out]

	stateMu   sync.Mutex
	serviceUp bool
}

// NewProxyMethodBackend registers a backend for cfg.Method on cfg.Router.
// The service starts in the down state until SetServiceState(true).
func NewProxyMethodBackend[Out any](cfg ProxyMethodConfig, deserialize func([]byte) (Out, error)) (*ProxyMethodBackend[Out], error) {
	cfg.fillDefaults()

	b := &ProxyMethodBackend[Out]{
		cfg:         cfg,
		deserialize: deserialize,
		pending:     NewPendingRequestMap[Out](),
	}

	if err := cfg.Router.register(cfg.Method, b); err != nil {
		return nil, err
	}

	return b, nil
}

// Deregister removes the backend from its router. In-flight requests stay
// pending until cancelled.
func (b *ProxyMethodBackend[Out]) Deregister() {
	b.cfg.Router.deregister(b.cfg.Method)
}

// SetServiceState reports service availability. A transition to down
// cancels every pending request with CodeServiceNotAvailable; repeating
// the same state is a no-op.
func (b *ProxyMethodBackend[Out]) SetServiceState(up bool) {
	b.stateMu.Lock()
	changed := b.serviceUp != up
	b.serviceUp = up
	b.stateMu.Unlock()

	if changed && !up {
		b.cancelAll()
	}
}

// PendingCount reports how many requests await a response.
func (b *ProxyMethodBackend[Out]) PendingCount() int {
	return b.pending.Len()
}

// HandleRequest serializes payload into a request packet under a fresh
// session id and returns the future resolving with the peer's answer.
// While the service is down the future is pre-resolved with
// CodeServiceNotAvailable and nothing is sent.
func (b *ProxyMethodBackend[Out]) HandleRequest(payload []byte) *Future[Out] {
	b.stateMu.Lock()
	up := b.serviceUp
	b.stateMu.Unlock()

	if !up {
		return resolvedFuture[Out](ipcerr.CodeServiceNotAvailable.Error())
	}

	if !b.cfg.Access.MethodRequestTx(b.cfg.Instance, b.cfg.Method, b.cfg.Client) {
		b.cfg.Log.WithField("method", b.cfg.Method).Warn("outgoing method request denied")
		return resolvedFuture[Out](ipcerr.CodeServiceNotAvailable.Error())
	}

	session := b.cfg.Sessions.Next()

	pkt, err := NewPacket(Envelope{
		Kind: KindRequest,
		Request: &identity.RequestHeader{
			Instance: b.cfg.Instance,
			Method:   b.cfg.Method,
			Client:   b.cfg.Client,
			Session:  session,
		},
		Payload: payload,
	})
	if err != nil {
		return resolvedFuture[Out](err)
	}

	promise, future := NewPromise[Out]()
	if err = b.pending.Insert(session, promise); err != nil {
		pkt.Unref()
		return resolvedFuture[Out](err)
	}

	b.cfg.Trace.MethodRequestSend(b.cfg.Instance, b.cfg.Method, b.cfg.Client, session)

	if err = b.cfg.Sink.Submit(pkt); err != nil {
		if p, ok := b.pending.MoveOutRequest(session); ok {
			p.Reject(ipcerr.CodeNetworkBindingFailure.Error(err))
		}
	}

	return future
}

// OnResponseReceived resolves the matching pending request with the
// deserialized payload. Responses with no pending entry are logged and
// dropped.
func (b *ProxyMethodBackend[Out]) OnResponseReceived(h identity.ResponseHeader, payload []byte) {
	if !b.cfg.Access.MethodResponseRx(b.cfg.Instance, h.Method, h.Client) {
		b.cfg.Log.WithField("session", h.Session).Warn("incoming method response denied")
		return
	}

	promise, ok := b.pending.MoveOutRequest(h.Session)
	if !ok {
		b.cfg.Log.WithField("session", h.Session).Warn("response without pending request")
		return
	}

	b.cfg.Trace.MethodResponseReceived(b.cfg.Instance, h.Method, h.Client, h.Session)

	out, err := b.deserialize(payload)
	if err != nil {
		promise.Reject(ipcerr.CodeNetworkBindingFailure.Error(err))
		return
	}

	promise.Resolve(out)
}

// OnErrorResponse resolves the matching pending request with
// CodeServiceNotAvailable when the return code says so, else with
// CodeNetworkBindingFailure.
func (b *ProxyMethodBackend[Out]) OnErrorResponse(h identity.ErrorResponseHeader) {
	if !b.cfg.Access.MethodErrorResponseRx(b.cfg.Instance, h.Method, h.Client) {
		b.cfg.Log.WithField("session", h.Session).Warn("incoming error response denied")
		return
	}

	promise, ok := b.pending.MoveOutRequest(h.Session)
	if !ok {
		b.cfg.Log.WithField("session", h.Session).Warn("error response without pending request")
		return
	}

	if h.ReturnCode == identity.ReturnServiceNotAvailable {
		promise.Reject(ipcerr.CodeServiceNotAvailable.Error())
		return
	}

	promise.Reject(ipcerr.CodeNetworkBindingFailure.Error())
}

// OnApplicationError resolves the matching pending request with the typed
// code from the configured domain table, or CodeNetworkBindingFailure when
// the domain is not configured.
func (b *ProxyMethodBackend[Out]) OnApplicationError(h identity.ApplicationErrorHeader, ae identity.ApplicationError) {
	if !b.cfg.Access.ApplicationErrorResponseRx(b.cfg.Instance, h.Method, h.Client) {
		b.cfg.Log.WithField("session", h.Session).Warn("incoming application error denied")
		return
	}

	promise, ok := b.pending.MoveOutRequest(h.Session)
	if !ok {
		b.cfg.Log.WithField("session", h.Session).Warn("application error without pending request")
		return
	}

	b.cfg.Trace.ApplicationErrorReceived(b.cfg.Instance, h.Method, h.Client, h.Session)

	if code, ok := b.cfg.AppError.Resolve(ae); ok {
		promise.Reject(code)
		return
	}

	promise.Reject(ipcerr.CodeNetworkBindingFailure.Error())
}

// cancelAll drains the pending map, resolving every request with an
// artificial CodeServiceNotAvailable.
func (b *ProxyMethodBackend[Out]) cancelAll() {
	for {
		promise, ok := b.pending.MoveOutNextRequest()
		if !ok {
			return
		}
		promise.Reject(ipcerr.CodeServiceNotAvailable.Error())
	}
}

// ProxyFireForgetBackend submits fire-and-forget requests: the same
// envelope construction as a method request but no pending entry and no
// reply path.
type ProxyFireForgetBackend struct {
	cfg ProxyMethodConfig

	stateMu   sync.Mutex
	serviceUp bool
}

// NewProxyFireForgetBackend builds a fire-and-forget backend. It does not
// occupy a router slot: nothing ever routes back.
func NewProxyFireForgetBackend(cfg ProxyMethodConfig) *ProxyFireForgetBackend {
	cfg.fillDefaults()
	return &ProxyFireForgetBackend{cfg: cfg}
}

// SetServiceState reports service availability.
func (b *ProxyFireForgetBackend) SetServiceState(up bool) {
	b.stateMu.Lock()
	b.serviceUp = up
	b.stateMu.Unlock()
}

// HandleRequest submits one fire-and-forget request. While the service is
// down the message is dropped with only a log line.
func (b *ProxyFireForgetBackend) HandleRequest(payload []byte) error {
	b.stateMu.Lock()
	up := b.serviceUp
	b.stateMu.Unlock()

	if !up {
		b.cfg.Log.WithField("method", b.cfg.Method).Debug("fire-and-forget dropped: service down")
		return nil
	}

	if !b.cfg.Access.FireForgetRequestTx(b.cfg.Instance, b.cfg.Method, b.cfg.Client) {
		b.cfg.Log.WithField("method", b.cfg.Method).Warn("outgoing fire-and-forget denied")
		return nil
	}

	pkt, err := NewPacket(Envelope{
		Kind: KindRequestNoReturn,
		Request: &identity.RequestHeader{
			Instance: b.cfg.Instance,
			Method:   b.cfg.Method,
			Client:   b.cfg.Client,
		},
		Payload: payload,
	})
	if err != nil {
		return err
	}

	b.cfg.Trace.MethodRequestNoReturnSend(b.cfg.Instance, b.cfg.Method, b.cfg.Client)

	return b.cfg.Sink.Submit(pkt)
}
