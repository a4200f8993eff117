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

// Package receiver implements the server-side state machine of one
// zero-copy connection: handshake, listening sub-state, notification
// gating, shutdown, termination, and corruption escalation.
//
// All On* methods are invoked from the side channel's single reactor
// goroutine; Connect, Terminate, HandleServerShutdown and NotifyNewSlotSent
// are called from application threads. A single mutex serializes the two
// contexts.
package receiver

import (
	"sync"

	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/ipcerr"
	"github.com/sabouaram/memcon/log"
	"github.com/sabouaram/memcon/logic"
	"github.com/sabouaram/memcon/shmem"
	"github.com/sabouaram/memcon/sidechannel"
	"github.com/sabouaram/memcon/util"
)

// Callbacks are installed by Connect and deregistered by Terminate. Both
// are optional.
type Callbacks struct {
	// OnStateChange runs after every state transition.
	OnStateChange func(id identity.ReceiverId, s State)

	// OnListeningChange runs when the Connected sub-state flips.
	OnListeningChange func(id identity.ReceiverId, listening bool)
}

// Receiver is one per-peer endpoint of a zero-copy server. It owns its
// side channel, the slot-pool and server-queue regions it offers in the
// handshake, and, once connected, the mapped client queue.
type Receiver struct {
	logc  log.Logger
	id    identity.ReceiverId
	class identity.ClassHandle

	channel *sidechannel.Channel
	logic   logic.Server
	mem     *shmem.MemoryManager

	slotCfg  shmem.SlotMemoryConfig
	queueCfg shmem.QueueMemoryConfig
	slotPool *shmem.Region
	srvQueue *shmem.Region

	mu            sync.Mutex
	state         State
	listen        ListenState
	connectCalled bool
	handle        *logic.ReceiverHandle
	clientQueue   *shmem.Region
	pendingDrops  *logic.DroppedInformation
	cbs           Callbacks
	cbExecuting   int
	released      bool
}

// New builds a Receiver in StateConnecting. No I/O happens until Connect.
func New(l log.Logger, id identity.ReceiverId, class identity.ClassHandle,
	channel *sidechannel.Channel, logicSrv logic.Server, mem *shmem.MemoryManager,
	slotCfg shmem.SlotMemoryConfig, slotPool *shmem.Region,
	queueCfg shmem.QueueMemoryConfig, srvQueue *shmem.Region) *Receiver {

	if l == nil {
		l = log.Discard()
	}

	return &Receiver{
		logc:         l.WithField("receiver", id.String()),
		id:           id,
		class:        class,
		channel:      channel,
		logic:        logicSrv,
		mem:          mem,
		slotCfg:      slotCfg,
		queueCfg:     queueCfg,
		slotPool:     slotPool,
		srvQueue:     srvQueue,
		state:        StateConnecting,
		listen:       ListenPolling,
		pendingDrops: logic.NewDroppedInformation(uint(slotCfg.NumSlots)),
	}
}

// Id returns this receiver's identity.
func (r *Receiver) Id() identity.ReceiverId {
	return r.id
}

// Class returns the receiver class this endpoint was admitted under.
func (r *Receiver) Class() identity.ClassHandle {
	return r.class
}

// GetState returns the current lifecycle state.
func (r *Receiver) GetState() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// GetListenState returns the Connected sub-state. Only meaningful while
// GetState is StateConnected.
func (r *Receiver) GetListenState() ListenState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listen
}

// HasReceiverHandle reports whether the logic registration is present,
// which holds exactly while the receiver is Connected.
func (r *Receiver) HasReceiverHandle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handle != nil
}

// IsInUse reports whether the receiver still holds resources or runs a
// callback. Once it returns false it returns false forever.
func (r *Receiver) IsInUse() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return false
	}

	if r.state == StateDisconnected && r.cbExecuting == 0 {
		r.released = true
		return false
	}

	return true
}

// Connect installs the callbacks, emits the handshake frame offering both
// regions, and begins async reception. It may be called at most once, and
// only in StateConnecting.
func (r *Receiver) Connect(cbs Callbacks) error {
	r.mu.Lock()

	if r.state != StateConnecting || r.connectCalled {
		r.mu.Unlock()
		return ipcerr.CodeUnexpectedReceiverState.Errorf("connect in state %s", r.state)
	}

	r.connectCalled = true
	r.cbs = cbs

	payload := sidechannel.ConnectionPayload{
		SlotConfig:  r.slotCfg,
		SlotHandle:  r.slotPool.Handle(),
		QueueConfig: r.queueCfg,
		QueueHandle: r.srvQueue.Handle(),
	}
	r.mu.Unlock()

	if err := r.channel.SendConnection(payload); err != nil {
		r.mu.Lock()
		r.toCorruptedLocked(ipcerr.CodeProtocolError)
		r.mu.Unlock()
		return err
	}

	return r.channel.Start(r)
}

// OnConnection handles a handshake frame from the peer. The server side
// only ever sends this frame, so receiving one is out of sequence.
func (r *Receiver) OnConnection(sidechannel.ConnectionPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateConnecting, StateConnected:
		r.toCorruptedLocked(ipcerr.CodeProtocolError)
	}
}

// OnAckConnection completes the handshake: the client queue is mapped, the
// receiver is registered with the accounting engine, and the state becomes
// Connected with the Polling sub-state. Any failure escalates to
// Corrupted.
func (r *Receiver) OnAckConnection(p sidechannel.AckPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateConnecting:
		if err := p.QueueConfig.Validate(); err != nil {
			r.logc.WithField("error", err.Error()).Warn("invalid client queue config in ack")
			r.toCorruptedLocked(ipcerr.CodeProtocolError)
			return
		}

		queue, err := r.mem.MapExchange(p.QueueHandle)
		if err != nil {
			r.logc.WithField("error", err.Error()).Warn("mapping client queue failed")
			r.toCorruptedLocked(ipcerr.CodeProtocolError)
			return
		}

		handle, err := r.logic.Register(r.id, r.class, queue)
		if err != nil {
			_ = queue.Close()
			r.logc.WithField("error", err.Error()).Warn("logic registration failed")
			r.toCorruptedLocked(ipcerr.CodeProtocolError)
			return
		}

		r.clientQueue = queue
		r.handle = &handle
		r.listen = ListenPolling
		r.setStateLocked(StateConnected)

	case StateConnected:
		r.toCorruptedLocked(ipcerr.CodeProtocolError)

	default:
		// Corrupted and Disconnected ignore every frame.
	}
}

// OnStartListening flips the Connected sub-state to Notified. Receiving it
// before the handshake completed, or twice in a row, is a protocol error.
func (r *Receiver) OnStartListening() {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateConnecting:
		r.toCorruptedLocked(ipcerr.CodeProtocolError)
	case StateConnected:
		if r.listen == ListenNotified {
			r.toCorruptedLocked(ipcerr.CodeProtocolError)
			return
		}
		r.listen = ListenNotified
		r.notifyListeningLocked(true)
	}
}

// OnStopListening flips the Connected sub-state back to Polling, with the
// same out-of-sequence rules as OnStartListening.
func (r *Receiver) OnStopListening() {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateConnecting:
		r.toCorruptedLocked(ipcerr.CodeProtocolError)
	case StateConnected:
		if r.listen == ListenPolling {
			r.toCorruptedLocked(ipcerr.CodeProtocolError)
			return
		}
		r.listen = ListenPolling
		r.notifyListeningLocked(false)
	}
}

// OnNotification handles a wake-up frame from the peer. Notifications only
// flow server to client, so one arriving here is out of sequence.
func (r *Receiver) OnNotification(*logic.DroppedInformation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateConnecting, StateConnected:
		r.toCorruptedLocked(ipcerr.CodeProtocolError)
	}
}

// OnShutdown handles the peer leaving: before the handshake completed
// there is nothing to deregister; in Connected the accounting registration
// is released. Either way the state becomes Disconnected.
func (r *Receiver) OnShutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateConnecting:
		r.setStateLocked(StateDisconnected)
	case StateConnected:
		r.deregisterLocked()
		r.setStateLocked(StateDisconnected)
	}
}

// OnTermination handles the peer closing this one connection; the effect
// on the receiver is the same as a peer shutdown.
func (r *Receiver) OnTermination() {
	r.OnShutdown()
}

// OnError escalates a transport failure. In Corrupted or Disconnected the
// event is ignored.
func (r *Receiver) OnError(code ipcerr.CodeError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateConnecting, StateConnected:
		r.toCorruptedLocked(code)
	}
}

// Terminate ends this connection from the application side: a termination
// frame is sent when the handshake was started, the accounting
// registration is released, callbacks are deregistered and the state
// becomes Disconnected. Calling it on an already-disconnected receiver
// returns CodeUnexpectedReceiverState.
func (r *Receiver) Terminate() error {
	r.mu.Lock()

	switch r.state {
	case StateDisconnected:
		r.mu.Unlock()
		return ipcerr.CodeUnexpectedReceiverState.Errorf("terminate in state %s", StateDisconnected)

	case StateCorrupted:
		r.cbs = Callbacks{}
		r.setStateLocked(StateDisconnected)
		r.mu.Unlock()
		return nil

	case StateConnecting:
		sendFrame := r.connectCalled
		r.cbs = Callbacks{}
		r.setStateLocked(StateDisconnected)
		r.mu.Unlock()

		if sendFrame {
			return r.surfaceTeardownError(r.channel.SendTermination())
		}
		return nil

	default: // StateConnected
		r.deregisterLocked()
		r.cbs = Callbacks{}
		r.setStateLocked(StateDisconnected)
		r.mu.Unlock()

		return r.surfaceTeardownError(r.channel.SendTermination())
	}
}

// HandleServerShutdown ends this connection because the whole server is
// going down: a shutdown frame is sent where the protocol requires one,
// and the state becomes Disconnected. On an already-disconnected receiver
// it is a no-op. Transport failures while sending the frame are surfaced
// but do not prevent the transition.
func (r *Receiver) HandleServerShutdown() error {
	r.mu.Lock()

	switch r.state {
	case StateDisconnected:
		r.mu.Unlock()
		return nil

	case StateCorrupted:
		r.setStateLocked(StateDisconnected)
		r.mu.Unlock()
		return nil

	case StateConnecting:
		sendFrame := r.connectCalled
		r.setStateLocked(StateDisconnected)
		r.mu.Unlock()

		if sendFrame {
			return r.surfaceTeardownError(r.channel.SendShutdown())
		}
		return nil

	default: // StateConnected
		r.deregisterLocked()
		r.setStateLocked(StateDisconnected)
		r.mu.Unlock()

		return r.surfaceTeardownError(r.channel.SendShutdown())
	}
}

// surfaceTeardownError filters a frame send failure during teardown: a
// peer that already closed its end is not worth reporting, the crash and
// protocol codes surface to the caller.
func (r *Receiver) surfaceTeardownError(err error) error {
	var out error

	util.HandleErrors(err,
		util.MatchHandler{Matcher: util.Code(ipcerr.CodePeerDisconnectedError), Handler: func(e ipcerr.Error) {
			r.logc.WithField("code", e.Code().String()).Debug("teardown frame not delivered, peer already gone")
		}},
		util.MatchHandler{Matcher: util.Codes(ipcerr.CodePeerCrashedError, ipcerr.CodeProtocolError), Handler: func(e ipcerr.Error) {
			out = e
		}},
		util.MatchHandler{Matcher: util.Else(), Handler: func(e ipcerr.Error) {
			out = e
		}},
	)

	return out
}

// NotifyNewSlotSent reports a freshly produced slot. In the Notified
// sub-state one wake-up frame is emitted carrying drops coalesced since
// the last notification; a send failure is reported as CodeProtocolError
// without changing state. In the Polling sub-state the wake-up is
// suppressed and drops keep accumulating for the next notification.
// Calling it in StateConnecting is a caller bug; in Corrupted or
// Disconnected it is a no-op.
func (r *Receiver) NotifyNewSlotSent(dropped *logic.DroppedInformation) error {
	r.mu.Lock()

	if r.state != StateConnected {
		r.mu.Unlock()
		return nil
	}

	if r.listen == ListenPolling {
		r.pendingDrops.Merge(dropped)
		r.mu.Unlock()
		return nil
	}

	payload := r.pendingDrops.TakeSnapshot()
	payload.Merge(dropped)
	r.mu.Unlock()

	if err := r.channel.SendNotification(payload); err != nil {
		// The caller decides whether this warrants OnError; the state is
		// deliberately left untouched here.
		r.mu.Lock()
		r.pendingDrops.Merge(payload)
		r.mu.Unlock()
		return ipcerr.CodeProtocolError.Error(err)
	}

	return nil
}

// CheckAndHandleLogicCorruption escalates to Corrupted when the accounting
// engine reports this receiver broke its bookkeeping. Outside
// StateConnected it is a no-op.
func (r *Receiver) CheckAndHandleLogicCorruption() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateConnected || r.handle == nil {
		return nil
	}

	if !r.logic.HasCausedCorruption(*r.handle) {
		return nil
	}

	r.toCorruptedLocked(ipcerr.CodeProtocolError)
	return ipcerr.CodeProtocolError.Errorf("receiver %s corrupted its slot accounting", r.id)
}

// Release frees the side channel and the mapped client queue. The slot
// pool and server queue stay with the server's region arena. Release
// requires the terminal state and no callback in flight.
func (r *Receiver) Release() error {
	if r.GetState() != StateDisconnected || r.IsInUse() {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("release while still in use")
	}

	err := r.channel.Close()

	r.mu.Lock()
	queue := r.clientQueue
	r.clientQueue = nil
	r.mu.Unlock()

	if queue != nil {
		if e := queue.Close(); err == nil {
			err = e
		}
	}

	return err
}

// toCorruptedLocked moves to Corrupted, releasing the accounting
// registration exactly when one exists.
func (r *Receiver) toCorruptedLocked(code ipcerr.CodeError) {
	if r.state == StateCorrupted || r.state == StateDisconnected {
		return
	}

	r.logc.WithField("code", code.String()).Warn("receiver corrupted")
	r.deregisterLocked()
	r.setStateLocked(StateCorrupted)
}

// deregisterLocked releases the logic registration and the handle.
func (r *Receiver) deregisterLocked() {
	if r.handle == nil {
		return
	}

	r.logic.Deregister(*r.handle)
	r.handle = nil
}

func (r *Receiver) setStateLocked(s State) {
	if r.state == s {
		return
	}

	// Disconnected is terminal; every caller checks before transitioning,
	// so reaching this is an internal bug, not a recoverable condition.
	if r.state == StateDisconnected {
		util.TerminateOnViolation("receiver %s: transition out of the terminal state to %s", r.id, s)
	}

	r.state = s

	cb := r.cbs.OnStateChange
	if cb == nil {
		return
	}

	r.cbExecuting++
	r.mu.Unlock()
	cb(r.id, s)
	r.mu.Lock()
	r.cbExecuting--
}

func (r *Receiver) notifyListeningLocked(listening bool) {
	cb := r.cbs.OnListeningChange
	if cb == nil {
		return
	}

	r.cbExecuting++
	r.mu.Unlock()
	cb(r.id, listening)
	r.mu.Lock()
	r.cbExecuting--
}
