/**
 * Licensed to the Apache Software Foundation (ASF) under one
 * or more contributor license agreements.  See the NOTICE file
 * distributed with this work for additional information
 * regarding copyright ownership.  The ASF licenses this file
 * to you under the Apache License, Version 2.0 (the
 * "License"); you may not use this file except in compliance
 * with the License.  You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package hs

import (
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

// Makes sure the device has a random static address, generating and
// configuring one if necessary.
func ensureRandAddr(h Host) (bledefs.BleAddr, error) {
	addr, err := h.CopyAddr(bledefs.BLE_ADDR_TYPE_RANDOM)
	if err == nil && !addr.IsZero() {
		return addr, nil
	}

	addr, err = h.GenRandAddr()
	if err != nil {
		return addr, err
	}

	if err := h.SetRandAddr(addr); err != nil {
		return addr, err
	}

	log.Debugf("configured random static address %s", addr.String())
	return addr, nil
}

// EnsureAddr makes sure the device has an identity address to advertise
// with.  With preferRandom unset, the public address is used if present and
// a random static address otherwise; with it set, the order is reversed.
// Failure yields a *padvutil.AddressResolutionError.
func EnsureAddr(h Host, preferRandom bool) (bledefs.BleDev, error) {
	pub := func() (bledefs.BleDev, error) {
		addr, err := h.CopyAddr(bledefs.BLE_ADDR_TYPE_PUBLIC)
		return bledefs.BleDev{
			AddrType: bledefs.BLE_ADDR_TYPE_PUBLIC,
			Addr:     addr,
		}, err
	}
	rnd := func() (bledefs.BleDev, error) {
		addr, err := ensureRandAddr(h)
		return bledefs.BleDev{
			AddrType: bledefs.BLE_ADDR_TYPE_RANDOM,
			Addr:     addr,
		}, err
	}

	first, second := pub, rnd
	if preferRandom {
		first, second = rnd, pub
	}

	dev, err := first()
	if err == nil {
		return dev, nil
	}

	dev, err = second()
	if err != nil {
		return bledefs.BleDev{}, padvutil.NewAddressResolutionError(err)
	}

	return dev, nil
}
