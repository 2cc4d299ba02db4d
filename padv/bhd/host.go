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

package bhd

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/evq"
	"mynewt.apache.org/blepadv/padv/gap"
	"mynewt.apache.org/blepadv/padv/hs"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

// Host is an hs.Host that forwards every call to blehostd.
type Host struct {
	bx *BleXport

	mtx     sync.Mutex
	started bool
	hsCfg   hs.Cfg
	q       *evq.EventQ
	cbs     map[uint8]gap.EventFn
}

func NewHost(cfg XportCfg) *Host {
	return newHost(NewBleXport(cfg))
}

func newHost(bx *BleXport) *Host {
	h := &Host{
		bx:  bx,
		cbs: map[uint8]gap.EventFn{},
	}
	bx.evtCb = h.onEvt
	bx.failCb = h.onFail

	return h
}

func (h *Host) post(name string, fn func()) {
	h.mtx.Lock()
	q := h.q
	h.mtx.Unlock()

	if q == nil {
		return
	}
	if err := q.Post(name, fn); err != nil {
		log.Warnf("bhd: dropping %s event: %s", name, err.Error())
	}
}

func (h *Host) postSync() {
	if cb := h.hsCfg.SyncCb; cb != nil {
		h.post("sync", cb)
	}
}

func (h *Host) onEvt(msg Msg) {
	switch evt := msg.(type) {
	case *BleSyncEvt:
		if evt.Synced {
			h.postSync()
		} else {
			log.Debugf("bhd: host <-> controller sync lost")
		}

	case *BleResetEvt:
		if cb := h.hsCfg.ResetCb; cb != nil {
			h.post("reset", func() { cb(evt.Reason) })
		}

	case *BleGapEvt:
		h.mtx.Lock()
		cb := h.cbs[evt.Instance]
		h.mtx.Unlock()

		if cb == nil {
			log.Debugf("bhd: no gap callback for instance %d; type=%d",
				evt.Instance, evt.GapType)
			return
		}

		raw := gap.RawEvent{
			Type:     evt.GapType,
			Instance: evt.Instance,
			Reason:   evt.Reason,
		}
		h.post("gap", func() {
			if rc := cb(raw); rc != 0 {
				log.Warnf("bhd: gap callback returned %d", rc)
			}
		})

	default:
		log.Debugf("bhd: unhandled event: %T", msg)
	}
}

func (h *Host) onFail(err error) {
	if cb := h.hsCfg.FailCb; cb != nil {
		h.post("fail", func() { cb(err) })
	} else {
		log.Errorf("bhd: %s", err.Error())
	}
}

func (h *Host) Start(cfg hs.Cfg, q *evq.EventQ) error {
	h.mtx.Lock()
	if h.started {
		h.mtx.Unlock()
		return padvutil.NewAlreadyError("blehostd host already started")
	}
	h.started = true
	h.hsCfg = cfg
	h.q = q
	h.mtx.Unlock()

	if err := h.bx.Start(); err != nil {
		h.mtx.Lock()
		h.started = false
		h.mtx.Unlock()
		return err
	}

	// The transport only returns once the host is synced.
	h.postSync()
	return nil
}

func (h *Host) Stop() error {
	h.mtx.Lock()
	if !h.started {
		h.mtx.Unlock()
		return fmt.Errorf("blehostd host not started")
	}
	h.started = false
	h.mtx.Unlock()

	return h.bx.Stop()
}

func (h *Host) ready() error {
	return h.bx.blockUntilReady()
}

func (h *Host) CopyAddr(addrType bledefs.BleAddrType) (
	bledefs.BleAddr, error) {

	if err := h.ready(); err != nil {
		return bledefs.BleAddr{}, err
	}
	return CopyAddrXact(h.bx, addrType)
}

func (h *Host) GenRandAddr() (bledefs.BleAddr, error) {
	if err := h.ready(); err != nil {
		return bledefs.BleAddr{}, err
	}
	return GenRandAddrXact(h.bx)
}

func (h *Host) SetRandAddr(addr bledefs.BleAddr) error {
	if err := h.ready(); err != nil {
		return err
	}
	return SetRandAddrXact(h.bx, addr)
}

func (h *Host) ExtAdvConfigure(instance uint8, params bledefs.ExtAdvParams,
	cb gap.EventFn) error {

	if err := h.ready(); err != nil {
		return err
	}

	txPower, err := ExtAdvConfigureXact(h.bx, instance, params)
	if err != nil {
		return err
	}
	log.Debugf("bhd: instance %d configured; selected_tx_power=%d",
		instance, txPower)

	h.mtx.Lock()
	h.cbs[instance] = cb
	h.mtx.Unlock()

	return nil
}

func (h *Host) ExtAdvSetData(instance uint8, data *hs.Mbuf) error {
	b := data.HandOff()

	if err := h.ready(); err != nil {
		return err
	}
	return ExtAdvSetDataXact(h.bx, instance, b)
}

func (h *Host) PeriodicAdvConfigure(instance uint8,
	params bledefs.PeriodicAdvParams) error {

	if err := h.ready(); err != nil {
		return err
	}
	return PeriodicAdvConfigureXact(h.bx, instance, params)
}

func (h *Host) PeriodicAdvStart(instance uint8) error {
	if err := h.ready(); err != nil {
		return err
	}
	return PeriodicAdvStartXact(h.bx, instance)
}

func (h *Host) ExtAdvStart(instance uint8, durationMs int,
	maxEvents int) error {

	if err := h.ready(); err != nil {
		return err
	}
	return ExtAdvStartXact(h.bx, instance, durationMs, maxEvents)
}

func (h *Host) String() string {
	return h.bx.String()
}
