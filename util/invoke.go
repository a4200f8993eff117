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

package util

import "reflect"

// Invoke calls the callable stored in u, passing args, and returns its
// results. Signature must be a func type. Calling Invoke on an empty
// UniqueFunction aborts the process with Exit(1): a UniqueFunction is
// meant to be populated before it is reachable from a code path that
// invokes it, so an empty call is a programming error, not a recoverable
// condition.
func Invoke[Signature any](u *UniqueFunction[Signature], args ...interface{}) []interface{} {
	fn, ok := u.Take()
	if !ok {
		Exit(1)
		return nil
	}

	rv := reflect.ValueOf(fn)
	in := make([]reflect.Value, len(args))
	for i, a := range args {
		if a == nil {
			in[i] = reflect.Zero(rv.Type().In(i))
		} else {
			in[i] = reflect.ValueOf(a)
		}
	}

	out := rv.Call(in)
	res := make([]interface{}, len(out))
	for i, o := range out {
		res[i] = o.Interface()
	}
	return res
}
