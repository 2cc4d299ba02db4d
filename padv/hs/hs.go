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

// Package hs defines the contract between the advertiser and a BLE host
// stack.
package hs

import (
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/evq"
	"mynewt.apache.org/blepadv/padv/gap"
)

type StoreStatusOp int

const (
	STORE_STATUS_OP_OVERFLOW StoreStatusOp = 1
	STORE_STATUS_OP_FULL     StoreStatusOp = 2
)

var StoreStatusOpStringMap = map[StoreStatusOp]string{
	STORE_STATUS_OP_OVERFLOW: "overflow",
	STORE_STATUS_OP_FULL:     "full",
}

// Reports that the host's persistent security store is out of room.
type StoreStatusEvent struct {
	Op         StoreStatusOp
	ObjType    int
	ConnHandle uint16
}

// Callbacks a host invokes on the event queue passed to Start.
type Cfg struct {
	ResetCb       func(reason int)
	SyncCb        func()
	StoreStatusCb func(ev StoreStatusEvent) int

	// Optional; invoked if the host becomes unusable after it started.
	FailCb func(err error)
}

// StoreStatusDefault is the store status handler used when the application
// has nothing better to do.  Nothing is persisted by an advertiser, so the
// event is only reported.
func StoreStatusDefault(ev StoreStatusEvent) int {
	log.Warnf("Store status: op=%s obj_type=%d conn_handle=%d",
		StoreStatusOpStringMap[ev.Op], ev.ObjType, ev.ConnHandle)
	return 0
}

type Host interface {
	// Starts the host.  The host posts Cfg callbacks, and the GAP callback
	// registered with ExtAdvConfigure, to q.
	Start(cfg Cfg, q *evq.EventQ) error
	Stop() error

	// Retrieves the device's address of the specified type.  Fails if the
	// device has no such address.
	CopyAddr(addrType bledefs.BleAddrType) (bledefs.BleAddr, error)
	GenRandAddr() (bledefs.BleAddr, error)
	SetRandAddr(addr bledefs.BleAddr) error

	ExtAdvConfigure(instance uint8, params bledefs.ExtAdvParams,
		cb gap.EventFn) error

	// Takes ownership of data, whether or not the call succeeds.
	ExtAdvSetData(instance uint8, data *Mbuf) error

	PeriodicAdvConfigure(instance uint8,
		params bledefs.PeriodicAdvParams) error
	PeriodicAdvStart(instance uint8) error

	// A zero duration or maxEvents means no limit.
	ExtAdvStart(instance uint8, durationMs int, maxEvents int) error
}
