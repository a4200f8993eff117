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

// Package server builds and runs the zero-copy server: parameter
// validation, shared-memory allocation, the accounting engine, and the
// arena issuing Receiver endpoints for incoming side channels.
package server

import (
	"fmt"
	"math"

	libval "github.com/go-playground/validator/v10"
	spfcbr "github.com/spf13/cobra"
	spfvpr "github.com/spf13/viper"

	"github.com/sabouaram/memcon/access"
	"github.com/sabouaram/memcon/identity"
	"github.com/sabouaram/memcon/ipcerr"
	"github.com/sabouaram/memcon/log"
	"github.com/sabouaram/memcon/receiver"
	"github.com/sabouaram/memcon/shmem"
)

// MaxReceiversLimit caps how many concurrent receivers one server may be
// configured for.
const MaxReceiversLimit = 1024

// params collects every builder setting. Tag validation runs at Build.
type params struct {
	NumSlots         uint64                 `mapstructure:"num_slots" validate:"gte=1"`
	ContentSize      uint64                 `mapstructure:"content_size" validate:"gte=1"`
	ContentAlignment uint64                 `mapstructure:"content_alignment" validate:"gte=1"`
	Technology       shmem.MemoryTechnology `mapstructure:"memory_technology"`
	MaxReceivers     uint64                 `mapstructure:"max_receivers" validate:"gte=1"`
	NumClasses       uint64                 `mapstructure:"num_receiver_classes" validate:"gte=1"`
	ClassLimits      []uint64               `mapstructure:"receiver_class_limits"`
	QueueCapacity    uint64                 `mapstructure:"queue_capacity" validate:"gte=1"`
	QueueElementSize uint64                 `mapstructure:"queue_element_size" validate:"gte=1"`
	MinIntegrity     access.IntegrityLevel  `mapstructure:"min_integrity_level"`
}

// Builder collects the server parameters. Every setter may be called at
// most once, and none may be called after Build.
type Builder struct {
	logc  log.Logger
	prm   params
	set   map[string]bool
	built bool

	onTransition func(id identity.ReceiverId, s receiver.State)
}

// NewBuilder returns an empty Builder logging through l.
func NewBuilder(l log.Logger) *Builder {
	if l == nil {
		l = log.Discard()
	}
	return &Builder{
		logc: l,
		set:  make(map[string]bool),
		prm: params{
			QueueCapacity:    64,
			QueueElementSize: 16,
		},
	}
}

func (b *Builder) setOnce(key string) error {
	if b.built {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("builder already consumed by Build")
	}
	if b.set[key] {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("%s already set", key)
	}
	b.set[key] = true
	return nil
}

// SetNumSlots sets how many slots each receiver's pool carries.
func (b *Builder) SetNumSlots(n uint64) error {
	if err := b.setOnce("num_slots"); err != nil {
		return err
	}
	b.prm.NumSlots = n
	return nil
}

// SetContentSize sets the usable byte size of one slot.
func (b *Builder) SetContentSize(n uint64) error {
	if err := b.setOnce("content_size"); err != nil {
		return err
	}
	b.prm.ContentSize = n
	return nil
}

// SetContentAlignment sets the slot alignment; it must be a power of two.
func (b *Builder) SetContentAlignment(n uint64) error {
	if err := b.setOnce("content_alignment"); err != nil {
		return err
	}
	b.prm.ContentAlignment = n
	return nil
}

// SetMemoryTechnology selects the backing store of the mapped regions.
func (b *Builder) SetMemoryTechnology(t shmem.MemoryTechnology) error {
	if err := b.setOnce("memory_technology"); err != nil {
		return err
	}
	b.prm.Technology = t
	return nil
}

// SetMaxReceivers bounds how many receivers may be live at once.
func (b *Builder) SetMaxReceivers(n uint64) error {
	if err := b.setOnce("max_receivers"); err != nil {
		return err
	}
	b.prm.MaxReceivers = n
	return nil
}

// SetNumReceiverClasses sets the size of the receiver-class table. Each
// class then needs one SetReceiverClassLimit call.
func (b *Builder) SetNumReceiverClasses(n uint64) error {
	if err := b.setOnce("num_receiver_classes"); err != nil {
		return err
	}
	b.prm.NumClasses = n
	b.prm.ClassLimits = make([]uint64, n)
	return nil
}

// SetReceiverClassLimit sets the slot-concurrency limit of one class. It
// requires SetNumReceiverClasses first and accepts each class once.
func (b *Builder) SetReceiverClassLimit(class identity.ClassHandle, limit uint64) error {
	if err := b.setOnce(fmt.Sprintf("receiver_class_limit[%d]", class)); err != nil {
		return err
	}
	if b.prm.ClassLimits == nil {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("class limits require the class count first")
	}
	if int(class) < 0 || uint64(class) >= b.prm.NumClasses {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("class %d outside the configured table", class)
	}
	b.prm.ClassLimits[class] = limit
	return nil
}

// SetQueueLayout sets the per-direction notification ring parameters.
func (b *Builder) SetQueueLayout(capacity, elementSize uint64) error {
	if err := b.setOnce("queue_layout"); err != nil {
		return err
	}
	b.prm.QueueCapacity = capacity
	b.prm.QueueElementSize = elementSize
	return nil
}

// SetMinIntegrityLevel sets the minimum peer integrity level accepted on
// incoming side channels.
func (b *Builder) SetMinIntegrityLevel(l access.IntegrityLevel) error {
	if err := b.setOnce("min_integrity_level"); err != nil {
		return err
	}
	b.prm.MinIntegrity = l
	return nil
}

// SetOnReceiverStateTransition installs the callback run on every receiver
// state transition.
func (b *Builder) SetOnReceiverStateTransition(f func(id identity.ReceiverId, s receiver.State)) error {
	if err := b.setOnce("on_receiver_state_transition"); err != nil {
		return err
	}
	b.onTransition = f
	return nil
}

// RegisterFlag binds the slot count, content size, content alignment,
// maximum receivers and receiver class count to CLI flags on cmd and links
// them into the given viper key space under "memcon.". The other builder
// parameters get no flag.
func (b *Builder) RegisterFlag(cmd *spfcbr.Command, vpr *spfvpr.Viper) error {
	cmd.PersistentFlags().Uint64("memcon-num-slots", 0, "number of slots per receiver pool")
	cmd.PersistentFlags().Uint64("memcon-content-size", 0, "usable byte size of one slot")
	cmd.PersistentFlags().Uint64("memcon-content-alignment", 8, "slot alignment, a power of two")
	cmd.PersistentFlags().Uint64("memcon-max-receivers", 0, "maximum concurrent receivers")
	cmd.PersistentFlags().Uint64("memcon-receiver-classes", 1, "number of receiver classes")

	for _, bind := range []struct{ key, flag string }{
		{"memcon.num_slots", "memcon-num-slots"},
		{"memcon.content_size", "memcon-content-size"},
		{"memcon.content_alignment", "memcon-content-alignment"},
		{"memcon.max_receivers", "memcon-max-receivers"},
		{"memcon.num_receiver_classes", "memcon-receiver-classes"},
	} {
		if err := vpr.BindPFlag(bind.key, cmd.PersistentFlags().Lookup(bind.flag)); err != nil {
			return err
		}
	}

	return nil
}

// FromViper loads num_slots, content_size, content_alignment,
// max_receivers, num_receiver_classes and receiver_class_limits from the
// "memcon." key space. Memory technology, queue layout and minimum
// integrity level are not read from viper. Keys absent from the
// configuration leave their setter available.
func (b *Builder) FromViper(vpr *spfvpr.Viper) error {
	if b.built {
		return ipcerr.CodeUnexpectedReceiverState.Errorf("builder already consumed by Build")
	}

	type load struct {
		key string
		fn  func(v uint64) error
	}

	for _, l := range []load{
		{"memcon.num_slots", b.SetNumSlots},
		{"memcon.content_size", b.SetContentSize},
		{"memcon.content_alignment", b.SetContentAlignment},
		{"memcon.max_receivers", b.SetMaxReceivers},
		{"memcon.num_receiver_classes", b.SetNumReceiverClasses},
	} {
		if !vpr.IsSet(l.key) {
			continue
		}
		if err := l.fn(vpr.GetUint64(l.key)); err != nil {
			return err
		}
	}

	if vpr.IsSet("memcon.receiver_class_limits") {
		for i, lim := range vpr.GetIntSlice("memcon.receiver_class_limits") {
			if err := b.SetReceiverClassLimit(identity.ClassHandle(i), uint64(lim)); err != nil {
				return err
			}
		}
	}

	return nil
}

// Build validates the collected parameters, allocates the slot-pool and
// queue regions for every receiver index, and returns the server. The
// builder is consumed: every later call on it fails.
func (b *Builder) Build() (*Server, error) {
	if b.built {
		return nil, ipcerr.CodeUnexpectedReceiverState.Errorf("builder already consumed by Build")
	}

	for _, required := range []string{"num_slots", "content_size", "content_alignment", "max_receivers", "num_receiver_classes"} {
		if !b.set[required] {
			return nil, ipcerr.CodeUnexpectedReceiverState.Errorf("%s was never set", required)
		}
	}

	val := libval.New()
	if err := val.Struct(b.prm); err != nil {
		return nil, ipcerr.CodeMemoryError.Error(err)
	}

	if b.prm.ContentAlignment&(b.prm.ContentAlignment-1) != 0 {
		return nil, ipcerr.CodeMemoryError.Errorf("content alignment %d is not a power of two", b.prm.ContentAlignment)
	}

	if b.prm.MaxReceivers > MaxReceiversLimit || b.prm.MaxReceivers > uint64(math.MaxInt) {
		return nil, ipcerr.CodeMemoryError.Errorf("max receivers %d above limit %d", b.prm.MaxReceivers, MaxReceiversLimit)
	}

	for class, limit := range b.prm.ClassLimits {
		if limit == 0 {
			return nil, ipcerr.CodeUnexpectedReceiverState.Errorf("class %d has no limit set", class)
		}
	}

	b.built = true

	srv, err := newServer(b.logc, b.prm, b.onTransition)
	if err != nil {
		return nil, err
	}

	return srv, nil
}
