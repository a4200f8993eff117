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

package logic

import (
	libbts "github.com/bits-and-blooms/bitset"
	libcbr "github.com/fxamacker/cbor/v2"
)

// DroppedInformation records which slots were produced but suppressed for
// one receiver since its last notification. Drops between two
// notifications are coalesced: merging unions the slot bitmaps and sums
// the counters.
type DroppedInformation struct {
	slots *libbts.BitSet
	count uint64
}

type droppedWire struct {
	Slots []byte `cbor:"1,keyasint,omitempty"`
	Count uint64 `cbor:"2,keyasint,omitempty"`
}

// NewDroppedInformation returns an empty record sized for numSlots slots.
func NewDroppedInformation(numSlots uint) *DroppedInformation {
	return &DroppedInformation{slots: libbts.New(numSlots)}
}

// MarkDropped records slot as suppressed and bumps the drop counter.
func (d *DroppedInformation) MarkDropped(slot uint) {
	if d.slots == nil {
		d.slots = libbts.New(slot + 1)
	}
	d.slots.Set(slot)
	d.count++
}

// Merge coalesces o into d: slot bitmaps are OR-ed, counters summed.
func (d *DroppedInformation) Merge(o *DroppedInformation) {
	if o == nil {
		return
	}
	if o.slots != nil {
		if d.slots == nil {
			d.slots = o.slots.Clone()
		} else {
			d.slots.InPlaceUnion(o.slots)
		}
	}
	d.count += o.count
}

// Count returns how many produced slots were suppressed since the record
// was last reset.
func (d *DroppedInformation) Count() uint64 {
	if d == nil {
		return 0
	}
	return d.count
}

// HasDrop reports whether slot is marked as dropped.
func (d *DroppedInformation) HasDrop(slot uint) bool {
	return d != nil && d.slots != nil && d.slots.Test(slot)
}

// IsZero reports whether no drop has been recorded.
func (d *DroppedInformation) IsZero() bool {
	return d == nil || d.count == 0
}

// TakeSnapshot returns the accumulated record and resets d to empty, so
// the next notification starts a fresh coalescing window.
func (d *DroppedInformation) TakeSnapshot() *DroppedInformation {
	out := &DroppedInformation{slots: nil, count: d.count}
	if d.slots != nil {
		out.slots = d.slots.Clone()
		d.slots.ClearAll()
	}
	d.count = 0
	return out
}

// MarshalCBOR implements cbor.Marshaler so a DroppedInformation can ride
// inside a control frame.
func (d *DroppedInformation) MarshalCBOR() ([]byte, error) {
	w := droppedWire{Count: d.Count()}

	if d != nil && d.slots != nil {
		b, err := d.slots.MarshalBinary()
		if err != nil {
			return nil, err
		}
		w.Slots = b
	}

	return libcbr.Marshal(w)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (d *DroppedInformation) UnmarshalCBOR(b []byte) error {
	var w droppedWire

	if err := libcbr.Unmarshal(b, &w); err != nil {
		return err
	}

	d.count = w.Count
	d.slots = nil

	if len(w.Slots) > 0 {
		d.slots = libbts.New(0)
		if err := d.slots.UnmarshalBinary(w.Slots); err != nil {
			return err
		}
	}

	return nil
}
