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

package server_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/memcon/access"
	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/receiver"
	. "github.com/sabouaram/memcon/server"
	"github.com/sabouaram/memcon/sidechannel"
)

var _ = Describe("Server", func() {
	var (
		srv         *Server
		transitions *sync.Map
	)

	build := func(minIntegrity access.IntegrityLevel) *Server {
		b := NewBuilder(nil)
		Expect(b.SetNumSlots(4)).To(Succeed())
		Expect(b.SetContentSize(128)).To(Succeed())
		Expect(b.SetContentAlignment(16)).To(Succeed())
		Expect(b.SetMaxReceivers(2)).To(Succeed())
		Expect(b.SetNumReceiverClasses(1)).To(Succeed())
		Expect(b.SetReceiverClassLimit(0, 2)).To(Succeed())
		Expect(b.SetMinIntegrityLevel(minIntegrity)).To(Succeed())
		Expect(b.SetOnReceiverStateTransition(func(id identity.ReceiverId, s receiver.State) {
			transitions.Store(id, s)
		})).To(Succeed())

		out, err := b.Build()
		Expect(err).ToNot(HaveOccurred())
		return out
	}

	BeforeEach(func() {
		transitions = &sync.Map{}
		srv = build(access.IntegrityQM)
	})

	AfterEach(func() {
		_ = srv.Close()
	})

	It("issues receivers with distinct indices up to the limit", func() {
		a, _ := sidechannel.NewPipe()
		b, _ := sidechannel.NewPipe()
		c, _ := sidechannel.NewPipe()

		r1, err := srv.RegisterReceiver(a, 0, access.IntegrityQM)
		Expect(err).ToNot(HaveOccurred())

		r2, err := srv.RegisterReceiver(b, 0, access.IntegrityQM)
		Expect(err).ToNot(HaveOccurred())
		Expect(r2.Id().Index).ToNot(Equal(r1.Id().Index))

		_, err = srv.RegisterReceiver(c, 0, access.IntegrityQM)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a peer below the minimum integrity level", func() {
		strict := build(access.IntegrityASILB)
		defer func() { _ = strict.Close() }()

		tr, _ := sidechannel.NewPipe()

		_, err := strict.RegisterReceiver(tr, 0, access.IntegrityQM)
		var ae *sidechannel.AcceptanceError
		Expect(err).To(BeAssignableToTypeOf(ae))
	})

	It("re-issues a freed index with a new generation", func() {
		tr, _ := sidechannel.NewPipe()

		r1, err := srv.RegisterReceiver(tr, 0, access.IntegrityQM)
		Expect(err).ToNot(HaveOccurred())

		Expect(r1.Terminate()).To(Succeed())
		Eventually(r1.IsInUse, time.Second).Should(BeFalse())
		Expect(srv.ReleaseReceiver(r1.Id())).To(Succeed())

		tr2, _ := sidechannel.NewPipe()
		r2, err := srv.RegisterReceiver(tr2, 0, access.IntegrityQM)
		Expect(err).ToNot(HaveOccurred())
		Expect(r2.Id().Index).To(Equal(r1.Id().Index))
		Expect(r2.Id().Generation).To(BeNumerically(">", r1.Id().Generation))
	})

	It("snapshots receiver states", func() {
		tr, _ := sidechannel.NewPipe()

		r1, err := srv.RegisterReceiver(tr, 0, access.IntegrityQM)
		Expect(err).ToNot(HaveOccurred())

		states := srv.ReceiverStates()
		Expect(states).To(HaveKeyWithValue(r1.Id(), receiver.StateConnecting))
	})

	It("fans the shutdown out to every live receiver", func() {
		tr1, _ := sidechannel.NewPipe()
		tr2, _ := sidechannel.NewPipe()

		r1, err := srv.RegisterReceiver(tr1, 0, access.IntegrityQM)
		Expect(err).ToNot(HaveOccurred())
		r2, err := srv.RegisterReceiver(tr2, 0, access.IntegrityQM)
		Expect(err).ToNot(HaveOccurred())

		Expect(srv.Shutdown()).To(Succeed())
		Expect(r1.GetState()).To(Equal(receiver.StateDisconnected))
		Expect(r2.GetState()).To(Equal(receiver.StateDisconnected))

		// A second broadcast only meets disconnected receivers.
		Expect(srv.Shutdown()).To(Succeed())
	})

	It("runs the configured transition callback", func() {
		tr, _ := sidechannel.NewPipe()

		r1, err := srv.RegisterReceiver(tr, 0, access.IntegrityQM)
		Expect(err).ToNot(HaveOccurred())

		Expect(r1.Connect(srv.Callbacks())).To(Succeed())
		Expect(r1.HandleServerShutdown()).To(Succeed())

		v, ok := transitions.Load(r1.Id())
		Expect(ok).To(BeTrue())
		Expect(v).To(Equal(receiver.StateDisconnected))
	})
})
