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
	"github.com/sabouaram/memcon/util"
)

// RemoteRequest is one received method request. The payload stays opaque
// until the user hook decodes it on the application thread.
type RemoteRequest struct {
	header  identity.RequestHeader
	payload []byte
}

// Header returns the request identifiers.
func (r *RemoteRequest) Header() identity.RequestHeader {
	return r.header
}

// Payload returns the still-serialized arguments.
func (r *RemoteRequest) Payload() []byte {
	return r.payload
}

// DecodeArguments runs the caller-supplied deserializer over the request
// payload, mapping failure to CodeMethodArgumentsNotRetrieved.
func DecodeArguments[T any](r *RemoteRequest, deserialize func([]byte) (T, error)) (T, error) {
	out, err := deserialize(r.payload)
	if err != nil {
		var zero T
		return zero, ipcerr.CodeMethodArgumentsNotRetrieved.Error(err)
	}
	return out, nil
}

// MethodHandler is the generated user hook for a request/response method.
// It runs on the application thread and must eventually fire respond
// exactly once.
type MethodHandler func(req *RemoteRequest, respond *ResponseHandler)

// FireForgetHandler is the generated user hook for a method with no reply
// path.
type FireForgetHandler func(req *RemoteRequest)

// ResponseHandler serializes and routes back exactly one answer for one
// received request: a regular response, an application error, or an error
// response. Firing it a second time fails with
// CodeUnexpectedReceiverState.
type ResponseHandler struct {
	router *SkeletonRouter
	conn   ConnectionSink
	header identity.RequestHeader
	guard  *util.UniqueFunction[struct{}]
}

func (h *ResponseHandler) fire() error {
	if _, ok := h.guard.Take(); !ok {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("response already sent for session %d", h.header.Session)
	}
	h.router.finish(h.header)
	return nil
}

// Reply sends a regular response carrying payload.
func (h *ResponseHandler) Reply(payload []byte) error {
	if err := h.fire(); err != nil {
		return err
	}

	if !h.router.acc.MethodResponseTx(h.header.Instance, h.header.Method, h.header.Client) {
		h.router.logc.WithField("session", h.header.Session).Warn("outgoing method response denied")
		return nil
	}

	pkt, err := NewPacket(Envelope{
		Kind: KindResponse,
		Response: &identity.ResponseHeader{
			Instance: h.header.Instance,
			Method:   h.header.Method,
			Client:   h.header.Client,
			Session:  h.header.Session,
		},
		Payload: payload,
	})
	if err != nil {
		return err
	}

	h.router.trc.MethodResponseSend(h.header.Instance, h.header.Method, h.header.Client, h.header.Session)

	return h.conn.Submit(pkt)
}

// ReplyApplicationError answers with a typed application error.
func (h *ResponseHandler) ReplyApplicationError(ae identity.ApplicationError) error {
	if err := h.fire(); err != nil {
		return err
	}

	if !h.router.acc.ApplicationErrorResponseTx(h.header.Instance, h.header.Method, h.header.Client) {
		h.router.logc.WithField("session", h.header.Session).Warn("outgoing application error denied")
		return nil
	}

	pkt, err := NewPacket(Envelope{
		Kind: KindApplicationError,
		AppError: &identity.ApplicationErrorHeader{
			Instance: h.header.Instance,
			Method:   h.header.Method,
			Client:   h.header.Client,
			Session:  h.header.Session,
		},
		Payload: ae.Serialize(),
	})
	if err != nil {
		return err
	}

	h.router.trc.ApplicationErrorSend(h.header.Instance, h.header.Method, h.header.Client, h.header.Session)

	return h.conn.Submit(pkt)
}

// ReplyError answers with an error response carrying rc.
func (h *ResponseHandler) ReplyError(rc identity.ReturnCode) error {
	if err := h.fire(); err != nil {
		return err
	}

	return h.router.sendErrorResponse(h.conn, h.header, rc)
}

type inflightKey struct {
	client  identity.ClientId
	method  identity.MethodId
	session identity.SessionId
}

type methodEntry struct {
	handler    MethodHandler
	fireForget FireForgetHandler
}

// SkeletonRouter dispatches incoming method-side packets of one provided
// service instance to registered backends, gated by the offer state.
type SkeletonRouter struct {
	logc     log.Logger
	instance identity.ProvidedServiceInstanceId
	offer    *identity.OfferState
	trc      trace.Sink
	acc      access.Decider

	mu       sync.Mutex
	methods  map[identity.MethodId]methodEntry
	inflight map[inflightKey]struct{}
}

// NewSkeletonRouter builds a router for instance. Nil trace or access
// collaborators fall back to the defaults.
func NewSkeletonRouter(l log.Logger, instance identity.ProvidedServiceInstanceId, trc trace.Sink, acc access.Decider) *SkeletonRouter {
	if l == nil {
		l = log.Discard()
	}
	if trc == nil {
		trc = trace.NopSink()
	}
	if acc == nil {
		acc = access.AllowAll()
	}

	return &SkeletonRouter{
		logc:     l,
		instance: instance,
		offer:    &identity.OfferState{},
		trc:      trc,
		acc:      acc,
		methods:  make(map[identity.MethodId]methodEntry),
		inflight: make(map[inflightKey]struct{}),
	}
}

// Offer marks the instance as offered; requests dispatch from now on.
func (r *SkeletonRouter) Offer() {
	r.offer.Start()
}

// StopOffer marks the instance as stopped; requests are answered with
// ReturnServiceNotAvailable.
func (r *SkeletonRouter) StopOffer() {
	r.offer.Stop()
}

// IsOffered reports the current offer state.
func (r *SkeletonRouter) IsOffered() bool {
	return r.offer.IsOffered()
}

// RegisterMethod installs the user hook for one request/response method.
func (r *SkeletonRouter) RegisterMethod(m identity.MethodId, h MethodHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.methods[m]; ok {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("method %d already registered", m)
	}

	r.methods[m] = methodEntry{handler: h}
	return nil
}

// RegisterFireForget installs the user hook for one no-reply method.
func (r *SkeletonRouter) RegisterFireForget(m identity.MethodId, h FireForgetHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.methods[m]; ok {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("method %d already registered", m)
	}

	r.methods[m] = methodEntry{fireForget: h}
	return nil
}

// DeregisterMethod removes the backend for m; later requests for it are
// answered with an unknown-method error response.
func (r *SkeletonRouter) DeregisterMethod(m identity.MethodId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.methods, m)
}

// DispatchRequest routes one incoming request packet arriving on conn. It
// consumes the caller's packet reference. A session already in flight for
// the same (client, method) is a protocol error.
func (r *SkeletonRouter) DispatchRequest(p *Packet, conn ConnectionSink) error {
	defer p.Unref()

	env := p.Envelope()

	switch env.Kind {
	case KindRequest:
		if env.Request == nil {
			return ipcerr.CodeProtocolError.Errorf("request packet without request header")
		}
		return r.dispatchMethod(*env.Request, env.Payload, conn)

	case KindRequestNoReturn:
		if env.Request == nil {
			return ipcerr.CodeProtocolError.Errorf("request packet without request header")
		}
		return r.dispatchFireForget(*env.Request, env.Payload)

	default:
		return ipcerr.CodeProtocolError.Errorf("unroutable packet kind %d on skeleton side", env.Kind)
	}
}

func (r *SkeletonRouter) dispatchMethod(h identity.RequestHeader, payload []byte, conn ConnectionSink) error {
	if !r.acc.MethodRequestRx(h.Instance, h.Method, h.Client) {
		r.logc.WithField("method", h.Method).Warn("incoming method request denied")
		return nil
	}

	if !r.offer.IsOffered() {
		return r.sendErrorResponse(conn, h, identity.ReturnServiceNotAvailable)
	}

	r.mu.Lock()
	entry, ok := r.methods[h.Method]
	if !ok || entry.handler == nil {
		r.mu.Unlock()
		return r.sendErrorResponse(conn, h, identity.ReturnUnknownMethod)
	}

	key := inflightKey{client: h.Client, method: h.Method, session: h.Session}
	if _, dup := r.inflight[key]; dup {
		r.mu.Unlock()
		return ipcerr.CodeProtocolError.Errorf("session %d already in flight for method %d", h.Session, h.Method)
	}
	r.inflight[key] = struct{}{}
	r.mu.Unlock()

	r.trc.MethodRequestReceived(h.Instance, h.Method, h.Client, h.Session)

	entry.handler(
		&RemoteRequest{header: h, payload: payload},
		&ResponseHandler{
			router: r,
			conn:   conn,
			header: h,
			guard:  util.NewUniqueFunction(struct{}{}),
		},
	)

	return nil
}

func (r *SkeletonRouter) dispatchFireForget(h identity.RequestHeader, payload []byte) error {
	if !r.acc.FireForgetRequestRx(h.Instance, h.Method, h.Client) {
		r.logc.WithField("method", h.Method).Warn("incoming fire-and-forget denied")
		return nil
	}

	if !r.offer.IsOffered() {
		r.logc.WithField("method", h.Method).Debug("fire-and-forget dropped: not offered")
		return nil
	}

	r.mu.Lock()
	entry, ok := r.methods[h.Method]
	r.mu.Unlock()

	if !ok || entry.fireForget == nil {
		r.logc.WithField("method", h.Method).Warn("fire-and-forget for unknown method")
		return nil
	}

	r.trc.MethodRequestNoReturnReceived(h.Instance, h.Method, h.Client)

	entry.fireForget(&RemoteRequest{header: h, payload: payload})
	return nil
}

func (r *SkeletonRouter) finish(h identity.RequestHeader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, inflightKey{client: h.Client, method: h.Method, session: h.Session})
}

func (r *SkeletonRouter) sendErrorResponse(conn ConnectionSink, h identity.RequestHeader, rc identity.ReturnCode) error {
	if !r.acc.MethodErrorResponseTx(h.Instance, h.Method, h.Client) {
		r.logc.WithField("session", h.Session).Warn("outgoing error response denied")
		return nil
	}

	pkt, err := NewPacket(Envelope{
		Kind: KindErrorResponse,
		Error: &identity.ErrorResponseHeader{
			Instance:   h.Instance,
			Method:     h.Method,
			Client:     h.Client,
			Session:    h.Session,
			ReturnCode: rc,
		},
	})
	if err != nil {
		return err
	}

	return conn.Submit(pkt)
}
