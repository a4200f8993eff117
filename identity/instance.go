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

// Package identity provides the identifier and header types shared by the
// receiver state machine and the method/event router: service instance
// identity, receiver/class handles, and wire message headers.
package identity

import (
	"fmt"
)

// InstanceAll is the sentinel InstanceId meaning "all instances". It is
// forbidden as a ProvidedServiceInstanceId's InstanceId.
const InstanceAll uint32 = 0xFFFFFFFF

// MinorVersionAny is the sentinel MinorVersion meaning "any version". It is
// forbidden as a ProvidedServiceInstanceId's MinorVersion.
const MinorVersionAny uint32 = 0xFFFFFFFF

// ProvidedServiceInstanceId identifies one concrete offering of a service.
// It is immutable after construction by New; the zero value is not a valid
// instance and must not be used directly.
type ProvidedServiceInstanceId struct {
	ServiceId    uint32
	InstanceId   uint32
	MajorVersion uint8
	MinorVersion uint32
}

// New validates and builds a ProvidedServiceInstanceId. It rejects
// InstanceId == InstanceAll and MinorVersion == MinorVersionAny.
func New(serviceID, instanceID uint32, majorVersion uint8, minorVersion uint32) (ProvidedServiceInstanceId, error) {
	if instanceID == InstanceAll {
		return ProvidedServiceInstanceId{}, fmt.Errorf("identity: InstanceId must not be the ALL sentinel (0x%08X)", InstanceAll)
	}
	if minorVersion == MinorVersionAny {
		return ProvidedServiceInstanceId{}, fmt.Errorf("identity: MinorVersion must not be the ANY sentinel (0x%08X)", MinorVersionAny)
	}

	id := ProvidedServiceInstanceId{
		ServiceId:    serviceID,
		InstanceId:   instanceID,
		MajorVersion: majorVersion,
		MinorVersion: minorVersion,
	}
	return id, nil
}

// Less gives ProvidedServiceInstanceId a total lexicographic order over
// (ServiceId, InstanceId, MajorVersion, MinorVersion).
func (p ProvidedServiceInstanceId) Less(o ProvidedServiceInstanceId) bool {
	if p.ServiceId != o.ServiceId {
		return p.ServiceId < o.ServiceId
	}
	if p.InstanceId != o.InstanceId {
		return p.InstanceId < o.InstanceId
	}
	if p.MajorVersion != o.MajorVersion {
		return p.MajorVersion < o.MajorVersion
	}
	return p.MinorVersion < o.MinorVersion
}

// String renders the identity as "service/instance:major.minor".
func (p ProvidedServiceInstanceId) String() string {
	return fmt.Sprintf("%d/%d:%d.%d", p.ServiceId, p.InstanceId, p.MajorVersion, p.MinorVersion)
}
