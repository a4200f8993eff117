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

package router_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/ipcerr"
	. "github.com/sabouaram/memcon/router"
)

var _ = Describe("Proxy method backend", func() {
	var (
		rtr     *ProxyRouter
		sink    *sinkRecorder
		backend *ProxyMethodBackend[string]
	)

	newBackend := func(table *ApplicationErrorTable) *ProxyMethodBackend[string] {
		b, err := NewProxyMethodBackend[string](ProxyMethodConfig{
			Instance: testInstance(),
			Client:   7,
			Method:   3,
			Router:   rtr,
			Sink:     sink,
			AppError: table,
		}, func(b []byte) (string, error) {
			if string(b) == "poison" {
				return "", errors.New("undecodable")
			}
			return string(b), nil
		})
		Expect(err).ToNot(HaveOccurred())
		return b
	}

	get := func(f *Future[string]) (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return f.Get(ctx)
	}

	BeforeEach(func() {
		rtr = NewProxyRouter(nil)
		sink = &sinkRecorder{}
		backend = newBackend(nil)
		backend.SetServiceState(true)
	})

	Context("HandleRequest", func() {
		It("submits a request packet and resolves on the response", func() {
			f := backend.HandleRequest([]byte("args"))
			Expect(sink.count()).To(Equal(1))
			Expect(backend.PendingCount()).To(Equal(1))

			env := sink.last().Envelope()
			Expect(env.Kind).To(Equal(KindRequest))
			Expect(env.Request).ToNot(BeNil())
			Expect(env.Request.Method).To(Equal(identity.MethodId(3)))
			Expect(env.Request.Client).To(Equal(identity.ClientId(7)))

			backend.OnResponseReceived(identity.ResponseHeader{
				Instance: env.Request.Instance,
				Method:   env.Request.Method,
				Client:   env.Request.Client,
				Session:  env.Request.Session,
			}, []byte("answer"))

			out, err := get(f)
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(Equal("answer"))
			Expect(backend.PendingCount()).To(Equal(0))
		})

		It("pre-resolves with service-not-available while down", func() {
			backend.SetServiceState(false)

			f := backend.HandleRequest([]byte("args"))
			_, err := get(f)
			Expect(ipcerr.Is(err, ipcerr.CodeServiceNotAvailable)).To(BeTrue())
			Expect(sink.count()).To(Equal(0))
		})

		It("uses a fresh session id per request", func() {
			backend.HandleRequest([]byte("a"))
			backend.HandleRequest([]byte("b"))

			sink.mu.Lock()
			defer sink.mu.Unlock()
			Expect(sink.pkts[0].Envelope().Request.Session).
				ToNot(Equal(sink.pkts[1].Envelope().Request.Session))
		})

		It("rejects the future when the sink fails", func() {
			sink.fail = errors.New("transport gone")

			f := backend.HandleRequest([]byte("args"))
			_, err := get(f)
			Expect(ipcerr.Is(err, ipcerr.CodeNetworkBindingFailure)).To(BeTrue())
			Expect(backend.PendingCount()).To(Equal(0))
		})

		It("rejects the future when the response is undecodable", func() {
			f := backend.HandleRequest([]byte("args"))
			env := sink.last().Envelope()

			backend.OnResponseReceived(identity.ResponseHeader{
				Method:  env.Request.Method,
				Client:  env.Request.Client,
				Session: env.Request.Session,
			}, []byte("poison"))

			_, err := get(f)
			Expect(ipcerr.Is(err, ipcerr.CodeNetworkBindingFailure)).To(BeTrue())
		})
	})

	Context("Cancellation", func() {
		It("resolves every pending request on a service-down transition", func() {
			futures := []*Future[string]{
				backend.HandleRequest([]byte("a")),
				backend.HandleRequest([]byte("b")),
				backend.HandleRequest([]byte("c")),
			}
			Expect(backend.PendingCount()).To(Equal(3))

			backend.SetServiceState(false)

			for _, f := range futures {
				_, err := get(f)
				Expect(ipcerr.Is(err, ipcerr.CodeServiceNotAvailable)).To(BeTrue())
			}
			Expect(backend.PendingCount()).To(Equal(0))
		})

		It("treats a repeated down transition as a single one", func() {
			backend.HandleRequest([]byte("a"))

			backend.SetServiceState(false)
			backend.SetServiceState(false)

			Expect(backend.PendingCount()).To(Equal(0))
		})

		It("cancels through the router on connection loss", func() {
			f := backend.HandleRequest([]byte("a"))

			rtr.SetConnectionState(false)

			_, err := get(f)
			Expect(ipcerr.Is(err, ipcerr.CodeServiceNotAvailable)).To(BeTrue())
		})
	})

	Context("Error responses", func() {
		It("maps the service-not-available return code", func() {
			f := backend.HandleRequest([]byte("a"))
			env := sink.last().Envelope()

			backend.OnErrorResponse(identity.ErrorResponseHeader{
				Method:     env.Request.Method,
				Client:     env.Request.Client,
				Session:    env.Request.Session,
				ReturnCode: identity.ReturnServiceNotAvailable,
			})

			_, err := get(f)
			Expect(ipcerr.Is(err, ipcerr.CodeServiceNotAvailable)).To(BeTrue())
		})

		It("maps any other return code to a binding failure", func() {
			f := backend.HandleRequest([]byte("a"))
			env := sink.last().Envelope()

			backend.OnErrorResponse(identity.ErrorResponseHeader{
				Method:     env.Request.Method,
				Client:     env.Request.Client,
				Session:    env.Request.Session,
				ReturnCode: identity.ReturnMalformedMessage,
			})

			_, err := get(f)
			Expect(ipcerr.Is(err, ipcerr.CodeNetworkBindingFailure)).To(BeTrue())
		})
	})

	Context("Application errors", func() {
		table := NewApplicationErrorTable(map[uint64]ErrorDomain{
			42: {Name: "vehicle", Codes: map[uint64]struct{}{1: {}, 2: {}}},
		})

		It("resolves a configured domain to its typed code", func() {
			backend.Deregister()
			backend = newBackend(table)
			backend.SetServiceState(true)

			f := backend.HandleRequest([]byte("a"))
			env := sink.last().Envelope()

			backend.OnApplicationError(identity.ApplicationErrorHeader{
				Method:  env.Request.Method,
				Client:  env.Request.Client,
				Session: env.Request.Session,
			}, identity.ApplicationError{ErrorDomain: 42, ErrorCode: 2})

			_, err := get(f)

			var ae *AppErrorCode
			Expect(errors.As(err, &ae)).To(BeTrue())
			Expect(ae.Domain).To(Equal(uint64(42)))
			Expect(ae.Code).To(Equal(uint64(2)))
			Expect(ae.SupportData).To(Equal(uint64(0)))
			Expect(ae.Message).To(BeEmpty())
		})

		It("maps an unconfigured domain to a binding failure", func() {
			f := backend.HandleRequest([]byte("a"))
			env := sink.last().Envelope()

			backend.OnApplicationError(identity.ApplicationErrorHeader{
				Method:  env.Request.Method,
				Client:  env.Request.Client,
				Session: env.Request.Session,
			}, identity.ApplicationError{ErrorDomain: 99, ErrorCode: 1})

			_, err := get(f)
			Expect(ipcerr.Is(err, ipcerr.CodeNetworkBindingFailure)).To(BeTrue())
		})
	})

	Context("Router dispatch", func() {
		It("routes a response packet to the issuing backend", func() {
			f := backend.HandleRequest([]byte("a"))
			req := sink.last().Envelope().Request

			pkt, err := NewPacket(Envelope{
				Kind: KindResponse,
				Response: &identity.ResponseHeader{
					Instance: req.Instance,
					Method:   req.Method,
					Client:   req.Client,
					Session:  req.Session,
				},
				Payload: []byte("routed"),
			})
			Expect(err).ToNot(HaveOccurred())

			rtr.DispatchPacket(pkt)

			out, err := get(f)
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(Equal("routed"))
		})

		It("drops a response for a deregistered method", func() {
			backend.Deregister()

			pkt, err := NewPacket(Envelope{
				Kind:     KindResponse,
				Response: &identity.ResponseHeader{Method: 3, Session: 1},
			})
			Expect(err).ToNot(HaveOccurred())

			rtr.DispatchPacket(pkt)
		})
	})
})

var _ = Describe("Proxy fire-and-forget backend", func() {
	var (
		sink    *sinkRecorder
		backend *ProxyFireForgetBackend
	)

	BeforeEach(func() {
		sink = &sinkRecorder{}
		backend = NewProxyFireForgetBackend(ProxyMethodConfig{
			Instance: testInstance(),
			Client:   7,
			Method:   9,
			Router:   NewProxyRouter(nil),
			Sink:     sink,
		})
	})

	It("drops silently while the service is down", func() {
		Expect(backend.HandleRequest([]byte("x"))).To(Succeed())
		Expect(sink.count()).To(Equal(0))
	})

	It("submits a no-return request while up", func() {
		backend.SetServiceState(true)

		Expect(backend.HandleRequest([]byte("x"))).To(Succeed())
		Expect(sink.count()).To(Equal(1))

		env := sink.last().Envelope()
		Expect(env.Kind).To(Equal(KindRequestNoReturn))
		Expect(env.Request.Method).To(Equal(identity.MethodId(9)))
	})
})
