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

package receiver_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/memcon/logic"
	. "github.com/sabouaram/memcon/receiver"
	"github.com/sabouaram/memcon/sidechannel"
)

var _ = Describe("Notification gating", func() {
	var (
		dir string
		fx  *fixture
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "memcon-test-*")
		Expect(err).ToNot(HaveOccurred())
		fx = newFixture(dir)
		fx.connect()
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("suppresses the wake-up while Polling and emits it once Notified", func() {
		// Polling: the peer asked not to be woken.
		Expect(fx.rcv.NotifyNewSlotSent(nil)).To(Succeed())

		fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStartListening})
		Eventually(fx.rcv.GetListenState, time.Second).Should(Equal(ListenNotified))

		Expect(fx.rcv.NotifyNewSlotSent(nil)).To(Succeed())

		f := fx.peer.recvFrame()
		Expect(f.Type).To(Equal(sidechannel.TypeNotification))
	})

	It("reports drops suppressed during Polling on the next wake-up", func() {
		d := logic.NewDroppedInformation(4)
		d.MarkDropped(1)

		// Suppressed: the drop record must survive until a wake-up goes out.
		Expect(fx.rcv.NotifyNewSlotSent(d)).To(Succeed())

		fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStartListening})
		Eventually(fx.rcv.GetListenState, time.Second).Should(Equal(ListenNotified))

		d2 := logic.NewDroppedInformation(4)
		d2.MarkDropped(3)
		Expect(fx.rcv.NotifyNewSlotSent(d2)).To(Succeed())

		f := fx.peer.recvFrame()
		Expect(f.Type).To(Equal(sidechannel.TypeNotification))
		Expect(f.Dropped).ToNot(BeNil())
		Expect(f.Dropped.Count()).To(Equal(uint64(2)))
		Expect(f.Dropped.HasDrop(1)).To(BeTrue())
		Expect(f.Dropped.HasDrop(3)).To(BeTrue())
	})

	It("is a no-op once Disconnected", func() {
		Expect(fx.rcv.Terminate()).To(Succeed())
		Expect(fx.rcv.NotifyNewSlotSent(nil)).To(Succeed())
	})
})

var _ = Describe("Logic corruption", func() {
	var (
		dir string
		fx  *fixture
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "memcon-test-*")
		Expect(err).ToNot(HaveOccurred())
		fx = newFixture(dir)
		fx.connect()
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	It("stays Connected while the accounting is clean", func() {
		Expect(fx.rcv.CheckAndHandleLogicCorruption()).To(Succeed())
		Expect(fx.rcv.GetState()).To(Equal(StateConnected))
	})

	It("escalates to Corrupted when the accounting broke", func() {
		fx.logic.forced = true

		err := fx.rcv.CheckAndHandleLogicCorruption()
		Expect(err).To(HaveOccurred())
		Expect(fx.rcv.GetState()).To(Equal(StateCorrupted))
		Expect(fx.rcv.HasReceiverHandle()).To(BeFalse())
	})
})
