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

	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/ipcerr"
	"github.com/sabouaram/memcon/logic"
	. "github.com/sabouaram/memcon/receiver"
	"github.com/sabouaram/memcon/shmem"
	"github.com/sabouaram/memcon/sidechannel"
)

// peer drives the client half of the side channel by hand: it reads the
// server's frames off the raw transport and injects answers.
type peer struct {
	tr  sidechannel.Transport
	mgr *shmem.MemoryManager
	cfg shmem.QueueMemoryConfig
}

func (p *peer) recvType() sidechannel.MessageType {
	raw, err := p.tr.Recv()
	Expect(err).ToNot(HaveOccurred())

	f, err := sidechannel.DecodeFrameBytes(raw)
	Expect(err).ToNot(HaveOccurred())
	return f.Type
}

func (p *peer) recvFrame() sidechannel.Frame {
	raw, err := p.tr.Recv()
	Expect(err).ToNot(HaveOccurred())

	f, err := sidechannel.DecodeFrameBytes(raw)
	Expect(err).ToNot(HaveOccurred())
	return f
}

func (p *peer) send(f sidechannel.Frame) {
	raw, err := sidechannel.EncodeFrame(f)
	Expect(err).ToNot(HaveOccurred())
	Expect(p.tr.Send(raw)).To(Succeed())
}

// ackHandshake consumes the connection frame and answers with a freshly
// allocated client queue, the way a healthy peer completes the handshake.
func (p *peer) ackHandshake() *shmem.Region {
	f := p.recvFrame()
	Expect(f.Type).To(Equal(sidechannel.TypeConnection))
	Expect(f.Connection).ToNot(BeNil())
	Expect(f.Connection.SlotHandle.IsZero()).To(BeFalse())
	Expect(f.Connection.QueueHandle.IsZero()).To(BeFalse())

	queue, err := p.mgr.AllocateQueue(p.cfg)
	Expect(err).ToNot(HaveOccurred())

	p.send(sidechannel.Frame{
		Type: sidechannel.TypeAckConnection,
		Ack:  &sidechannel.AckPayload{QueueConfig: p.cfg, QueueHandle: queue.Handle()},
	})
	return queue
}

// corruptibleLogic wraps the real accounting engine so a test can force
// the corruption answer without reaching into its internals.
type corruptibleLogic struct {
	logic.Server
	forced bool
}

func (c *corruptibleLogic) HasCausedCorruption(h logic.ReceiverHandle) bool {
	return c.forced || c.Server.HasCausedCorruption(h)
}

type fixture struct {
	rcv   *Receiver
	peer  *peer
	logic *corruptibleLogic
	pool  *shmem.Region
	queue *shmem.Region
}

func newFixture(dir string) *fixture {
	slotCfg := shmem.SlotMemoryConfig{NumSlots: 4, ContentSize: 128, ContentAlignment: 16}
	queueCfg := shmem.QueueMemoryConfig{Capacity: 8, ElementSize: 16, Alignment: 16}

	mgr := shmem.NewMemoryManager(nil, dir)

	pool, err := mgr.AllocateSlotPool(slotCfg)
	Expect(err).ToNot(HaveOccurred())

	queue, err := mgr.AllocateQueue(queueCfg)
	Expect(err).ToNot(HaveOccurred())

	srvEnd, cliEnd := sidechannel.NewPipe()
	logicSrv := &corruptibleLogic{Server: logic.NewServer(nil, uint(slotCfg.NumSlots), []uint64{2})}

	rcv := New(nil,
		identity.ReceiverId{Index: 0, Generation: 1}, 0,
		sidechannel.NewChannel(srvEnd, nil),
		logicSrv, mgr,
		slotCfg, pool,
		queueCfg, queue,
	)

	return &fixture{
		rcv:   rcv,
		peer:  &peer{tr: cliEnd, mgr: mgr, cfg: queueCfg},
		logic: logicSrv,
		pool:  pool,
		queue: queue,
	}
}

// connect completes the handshake and waits for Connected.
func (f *fixture) connect() {
	Expect(f.rcv.Connect(Callbacks{})).To(Succeed())
	f.peer.ackHandshake()
	Eventually(f.rcv.GetState, time.Second).Should(Equal(StateConnected))
}

var _ = Describe("Lifecycle", func() {
	var (
		dir string
		fx  *fixture
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "memcon-test-*")
		Expect(err).ToNot(HaveOccurred())
		fx = newFixture(dir)
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	Context("Handshake", func() {
		It("reaches Connected.Polling on a valid ack", func() {
			fx.connect()

			Expect(fx.rcv.GetListenState()).To(Equal(ListenPolling))
			Expect(fx.rcv.HasReceiverHandle()).To(BeTrue())
			Expect(fx.rcv.IsInUse()).To(BeTrue())
		})

		It("rejects a second Connect", func() {
			fx.connect()

			err := fx.rcv.Connect(Callbacks{})
			Expect(ipcerr.Is(err, ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
			Expect(fx.rcv.GetState()).To(Equal(StateConnected))
		})

		It("rejects Connect twice even before the ack", func() {
			Expect(fx.rcv.Connect(Callbacks{})).To(Succeed())

			err := fx.rcv.Connect(Callbacks{})
			Expect(ipcerr.Is(err, ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
		})

		It("corrupts on a duplicate ack", func() {
			fx.connect()

			fx.peer.send(sidechannel.Frame{
				Type: sidechannel.TypeAckConnection,
				Ack:  &sidechannel.AckPayload{QueueConfig: fx.peer.cfg},
			})

			Eventually(fx.rcv.GetState, time.Second).Should(Equal(StateCorrupted))
			Expect(fx.rcv.HasReceiverHandle()).To(BeFalse())
		})

		It("corrupts on an ack carrying a dead exchange handle", func() {
			Expect(fx.rcv.Connect(Callbacks{})).To(Succeed())
			fx.peer.recvType()

			fx.peer.send(sidechannel.Frame{
				Type: sidechannel.TypeAckConnection,
				Ack: &sidechannel.AckPayload{
					QueueConfig: fx.peer.cfg,
					QueueHandle: shmem.ExchangeHandle{Token: "gone", Path: "/nonexistent/region"},
				},
			})

			Eventually(fx.rcv.GetState, time.Second).Should(Equal(StateCorrupted))
		})
	})

	Context("Listening sub-state", func() {
		It("corrupts on StopListening while Polling", func() {
			fx.connect()

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStopListening})

			Eventually(fx.rcv.GetState, time.Second).Should(Equal(StateCorrupted))
			Expect(fx.rcv.HasReceiverHandle()).To(BeFalse())
		})

		It("corrupts on two StartListening in a row", func() {
			fx.connect()

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStartListening})
			Eventually(fx.rcv.GetListenState, time.Second).Should(Equal(ListenNotified))

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStartListening})
			Eventually(fx.rcv.GetState, time.Second).Should(Equal(StateCorrupted))
		})

		It("corrupts on StartListening before the handshake completed", func() {
			Expect(fx.rcv.Connect(Callbacks{})).To(Succeed())
			fx.peer.recvType()

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStartListening})
			Eventually(fx.rcv.GetState, time.Second).Should(Equal(StateCorrupted))
		})

		It("flips back to Polling on StopListening while Notified", func() {
			fx.connect()

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStartListening})
			Eventually(fx.rcv.GetListenState, time.Second).Should(Equal(ListenNotified))

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStopListening})
			Eventually(fx.rcv.GetListenState, time.Second).Should(Equal(ListenPolling))
			Expect(fx.rcv.GetState()).To(Equal(StateConnected))
		})
	})

	Context("Teardown", func() {
		It("disconnects on peer shutdown before the handshake", func() {
			Expect(fx.rcv.Connect(Callbacks{})).To(Succeed())
			fx.peer.recvType()

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeShutdown})
			Eventually(fx.rcv.GetState, time.Second).Should(Equal(StateDisconnected))
		})

		It("deregisters and disconnects on peer shutdown while connected", func() {
			fx.connect()

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeShutdown})
			Eventually(fx.rcv.GetState, time.Second).Should(Equal(StateDisconnected))
			Expect(fx.rcv.HasReceiverHandle()).To(BeFalse())
		})

		It("sends a termination frame on Terminate while connected", func() {
			fx.connect()

			Expect(fx.rcv.Terminate()).To(Succeed())
			Expect(fx.rcv.GetState()).To(Equal(StateDisconnected))
			Expect(fx.rcv.HasReceiverHandle()).To(BeFalse())
			Expect(fx.peer.recvType()).To(Equal(sidechannel.TypeTermination))
		})

		It("fails a second Terminate", func() {
			fx.connect()

			Expect(fx.rcv.Terminate()).To(Succeed())

			err := fx.rcv.Terminate()
			Expect(ipcerr.Is(err, ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())
		})

		It("sends a shutdown frame on HandleServerShutdown while connected", func() {
			fx.connect()

			Expect(fx.rcv.HandleServerShutdown()).To(Succeed())
			Expect(fx.rcv.GetState()).To(Equal(StateDisconnected))
			Expect(fx.peer.recvType()).To(Equal(sidechannel.TypeShutdown))
		})

		It("treats HandleServerShutdown on a disconnected receiver as a no-op", func() {
			fx.connect()

			Expect(fx.rcv.Terminate()).To(Succeed())
			fx.peer.recvType()

			Expect(fx.rcv.HandleServerShutdown()).To(Succeed())
			Expect(fx.rcv.GetState()).To(Equal(StateDisconnected))
		})

		It("sends no frame leaving Corrupted", func() {
			fx.connect()

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStopListening})
			Eventually(fx.rcv.GetState, time.Second).Should(Equal(StateCorrupted))

			Expect(fx.rcv.HandleServerShutdown()).To(Succeed())
			Expect(fx.rcv.GetState()).To(Equal(StateDisconnected))

			// Only the handshake frame ever reached the peer: once the
			// channel is released the peer sees end of stream, not a frame.
			Eventually(fx.rcv.IsInUse, time.Second).Should(BeFalse())
			Expect(fx.rcv.Release()).To(Succeed())

			_, err := fx.peer.tr.Recv()
			Expect(err).To(HaveOccurred())
		})
	})

	Context("Transport failures", func() {
		It("corrupts on a clean peer disconnect", func() {
			fx.connect()

			Expect(fx.peer.tr.Close()).To(Succeed())
			Eventually(fx.rcv.GetState, time.Second).Should(Equal(StateCorrupted))
			Expect(fx.rcv.HasReceiverHandle()).To(BeFalse())
		})

		It("ignores frames once Disconnected", func() {
			fx.connect()
			Expect(fx.rcv.Terminate()).To(Succeed())

			fx.peer.send(sidechannel.Frame{Type: sidechannel.TypeStartListening})
			Consistently(fx.rcv.GetState, 200*time.Millisecond).Should(Equal(StateDisconnected))
		})
	})

	Context("IsInUse", func() {
		It("stays false once it returned false", func() {
			fx.connect()
			Expect(fx.rcv.Terminate()).To(Succeed())

			Eventually(fx.rcv.IsInUse, time.Second).Should(BeFalse())
			Consistently(fx.rcv.IsInUse, 200*time.Millisecond).Should(BeFalse())
		})

		It("allows Release only once unused", func() {
			fx.connect()

			Expect(ipcerr.Is(fx.rcv.Release(), ipcerr.CodeUnexpectedReceiverState)).To(BeTrue())

			Expect(fx.rcv.Terminate()).To(Succeed())
			Eventually(fx.rcv.IsInUse, time.Second).Should(BeFalse())
			Expect(fx.rcv.Release()).To(Succeed())
		})
	})
})
