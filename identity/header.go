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

package identity

// ReturnCode is the well-known return-code field carried on error response
// headers.
type ReturnCode uint8

const (
	// ReturnOk indicates a successful response; carried for symmetry, never
	// used on an error response header.
	ReturnOk ReturnCode = 0

	// ReturnServiceNotAvailable mirrors ipcerr.CodeServiceNotAvailable on
	// the wire.
	ReturnServiceNotAvailable ReturnCode = 1

	// ReturnUnknownMethod indicates the skeleton has no backend registered
	// for the request's MethodId.
	ReturnUnknownMethod ReturnCode = 2

	// ReturnMalformedMessage indicates the request failed structural
	// validation before it reached a backend.
	ReturnMalformedMessage ReturnCode = 3
)

// RequestHeader is carried on every method request.
type RequestHeader struct {
	Instance ProvidedServiceInstanceId
	Method   MethodId
	Client   ClientId
	Session  SessionId
}

// ResponseHeader is carried on a successful method response.
type ResponseHeader struct {
	Instance ProvidedServiceInstanceId
	Method   MethodId
	Client   ClientId
	Session  SessionId
}

// ErrorResponseHeader is carried on a method error response.
type ErrorResponseHeader struct {
	Instance   ProvidedServiceInstanceId
	Method     MethodId
	Client     ClientId
	Session    SessionId
	ReturnCode ReturnCode
}

// ApplicationErrorHeader is carried on an application-error response; the
// payload itself is an ApplicationError (see applicationerror.go).
type ApplicationErrorHeader struct {
	Instance ProvidedServiceInstanceId
	Method   MethodId
	Client   ClientId
	Session  SessionId
}

// SubscribeHeader is carried on an event subscribe/unsubscribe request.
type SubscribeHeader struct {
	Instance ProvidedServiceInstanceId
	Event    EventId
	Client   ClientId
}

// NotificationHeader is carried on an event notification.
type NotificationHeader struct {
	Instance ProvidedServiceInstanceId
	Event    EventId
}
