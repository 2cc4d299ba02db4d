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

// Package sim implements an in-process BLE host.  It enforces the ordering
// rules of the NimBLE extended advertising API, records every call it
// receives, and lets the caller inject lifecycle and GAP events.
package sim

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/evq"
	"mynewt.apache.org/blepadv/padv/gap"
	"mynewt.apache.org/blepadv/padv/hs"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

type Op string

const (
	OP_COPY_ADDR              Op = "copy_addr"
	OP_GEN_RAND_ADDR          Op = "gen_rand_addr"
	OP_SET_RAND_ADDR          Op = "set_rand_addr"
	OP_EXT_ADV_CONFIGURE      Op = "ext_adv_configure"
	OP_EXT_ADV_SET_DATA       Op = "ext_adv_set_data"
	OP_PERIODIC_ADV_CONFIGURE Op = "periodic_adv_configure"
	OP_PERIODIC_ADV_START     Op = "periodic_adv_start"
	OP_EXT_ADV_START          Op = "ext_adv_start"
)

// Maximum extended advertising data length accepted by the controller.
const MaxExtAdvDataLen = 1650

// A host call, as seen by the simulated host.
type Call struct {
	Op       Op
	Instance uint8
	Data     []byte
}

func (c Call) String() string {
	if c.Data != nil {
		return fmt.Sprintf("%s(%d, %x)", c.Op, c.Instance, c.Data)
	}
	return fmt.Sprintf("%s(%d)", c.Op, c.Instance)
}

type HostCfg struct {
	// Nil means the device has no such address.
	PublicAddr *bledefs.BleAddr
	RandAddr   *bledefs.BleAddr

	// Whether GenRandAddr succeeds.
	CanGenRand bool

	// Whether Start schedules a sync event, and after what delay.
	AutoSync  bool
	SyncDelay time.Duration

	MaxInstances int
}

func NewHostCfg() HostCfg {
	return HostCfg{
		PublicAddr: &bledefs.BleAddr{
			Bytes: [6]byte{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f},
		},
		CanGenRand:   true,
		AutoSync:     true,
		MaxInstances: 1,
	}
}

type instState struct {
	configured     bool
	params         bledefs.ExtAdvParams
	cb             gap.EventFn
	data           []byte
	periodicCfgd   bool
	periodicParams bledefs.PeriodicAdvParams
	periodicActive bool
	extActive      bool
}

type Host struct {
	cfg HostCfg

	mtx       sync.Mutex
	q         *evq.EventQ
	hsCfg     hs.Cfg
	started   bool
	synced    bool
	randAddr  *bledefs.BleAddr
	calls     []Call
	fails     map[Op]int
	instances map[uint8]*instState
	syncTimer *time.Timer
}

func NewHost(cfg HostCfg) *Host {
	if cfg.MaxInstances <= 0 {
		cfg.MaxInstances = 1
	}

	return &Host{
		cfg:       cfg,
		randAddr:  cfg.RandAddr,
		fails:     map[Op]int{},
		instances: map[uint8]*instState{},
	}
}

func hostErr(op Op, status int) error {
	return padvutil.FmtBleHostError(status,
		"%s failed; status=%s (%d)", op, hs.ErrCodeToString(status), status)
}

// FailOn makes every subsequent call of the specified operation fail with
// the given host status.  A status of 0 clears the failure.
func (h *Host) FailOn(op Op, status int) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if status == 0 {
		delete(h.fails, op)
	} else {
		h.fails[op] = status
	}
}

// Records a call and reports any injected failure.  Must be called with the
// lock held.
func (h *Host) enter(op Op, instance uint8, data []byte) error {
	h.calls = append(h.calls, Call{
		Op:       op,
		Instance: instance,
		Data:     data,
	})

	if status := h.fails[op]; status != 0 {
		return hostErr(op, status)
	}

	return nil
}

func (h *Host) Calls() []Call {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	calls := make([]Call, len(h.calls))
	copy(calls, h.calls)
	return calls
}

func (h *Host) Ops() []Op {
	calls := h.Calls()

	ops := make([]Op, len(calls))
	for i, c := range calls {
		ops[i] = c.Op
	}
	return ops
}

func (h *Host) Start(cfg hs.Cfg, q *evq.EventQ) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.started {
		return padvutil.NewAlreadyError("simulated host already started")
	}

	h.started = true
	h.hsCfg = cfg
	h.q = q

	if h.cfg.AutoSync {
		h.syncTimer = time.AfterFunc(h.cfg.SyncDelay, func() {
			if err := h.Sync(); err != nil {
				log.Debugf("sim: auto sync failed: %s", err.Error())
			}
		})
	}

	return nil
}

func (h *Host) Stop() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if !h.started {
		return fmt.Errorf("simulated host not started")
	}

	if h.syncTimer != nil {
		h.syncTimer.Stop()
		h.syncTimer = nil
	}
	h.started = false
	h.synced = false

	return nil
}

func (h *Host) post(name string, fn func()) error {
	if !h.started {
		return fmt.Errorf("simulated host not started")
	}
	return h.q.Post(name, fn)
}

// Sync marks the host as synchronized with the controller and raises the
// sync callback.
func (h *Host) Sync() error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if !h.started {
		return fmt.Errorf("simulated host not started")
	}
	h.synced = true

	cb := h.hsCfg.SyncCb
	if cb == nil {
		return nil
	}
	return h.post("sync", cb)
}

// Reset simulates a host stack reset.  Advertising stops and the host is no
// longer synced.
func (h *Host) Reset(reason int) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	h.synced = false
	for _, inst := range h.instances {
		inst.extActive = false
		inst.periodicActive = false
	}

	cb := h.hsCfg.ResetCb
	if cb == nil {
		return nil
	}
	return h.post("reset", func() { cb(reason) })
}

func (h *Host) StoreStatus(ev hs.StoreStatusEvent) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	cb := h.hsCfg.StoreStatusCb
	if cb == nil {
		cb = hs.StoreStatusDefault
	}
	return h.post("store_status", func() { cb(ev) })
}

// RaiseGap delivers a GAP event to the callback registered for the event's
// instance, or to any registered callback if that instance has none.
func (h *Host) RaiseGap(raw gap.RawEvent) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	var cb gap.EventFn
	if inst := h.instances[raw.Instance]; inst != nil && inst.cb != nil {
		cb = inst.cb
	} else {
		for _, inst := range h.instances {
			if inst.cb != nil {
				cb = inst.cb
				break
			}
		}
	}
	if cb == nil {
		return fmt.Errorf("no gap callback registered")
	}

	if raw.Type == int(gap.EVENT_ADV_COMPLETE) {
		if inst := h.instances[raw.Instance]; inst != nil {
			inst.extActive = false
		}
	}

	return h.post("gap", func() {
		if rc := cb(raw); rc != 0 {
			log.Warnf("sim: gap callback returned %d", rc)
		}
	})
}

func (h *Host) Synced() bool {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	return h.synced
}

// AdvData returns the advertising data most recently set on an instance.
func (h *Host) AdvData(instance uint8) []byte {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if inst := h.instances[instance]; inst != nil {
		return inst.data
	}
	return nil
}

// Advertising reports whether periodic and extended advertising are active
// on an instance.
func (h *Host) Advertising(instance uint8) (periodic bool, ext bool) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if inst := h.instances[instance]; inst != nil {
		return inst.periodicActive, inst.extActive
	}
	return false, false
}

func (h *Host) CopyAddr(addrType bledefs.BleAddrType) (
	bledefs.BleAddr, error) {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.enter(OP_COPY_ADDR, 0, nil); err != nil {
		return bledefs.BleAddr{}, err
	}

	var addr *bledefs.BleAddr
	switch addrType {
	case bledefs.BLE_ADDR_TYPE_PUBLIC:
		addr = h.cfg.PublicAddr
	case bledefs.BLE_ADDR_TYPE_RANDOM:
		addr = h.randAddr
	default:
		return bledefs.BleAddr{}, hostErr(OP_COPY_ADDR, hs.ERR_CODE_EINVAL)
	}

	if addr == nil {
		return bledefs.BleAddr{}, hostErr(OP_COPY_ADDR, hs.ERR_CODE_ENOADDR)
	}
	return *addr, nil
}

func (h *Host) GenRandAddr() (bledefs.BleAddr, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.enter(OP_GEN_RAND_ADDR, 0, nil); err != nil {
		return bledefs.BleAddr{}, err
	}
	if !h.cfg.CanGenRand {
		return bledefs.BleAddr{},
			hostErr(OP_GEN_RAND_ADDR, hs.ERR_CODE_ENOTSUP)
	}

	// Static random: two most significant bits set.
	return bledefs.BleAddr{
		Bytes: [6]byte{0xc1, 0x22, 0x33, 0x44, 0x55, 0x66},
	}, nil
}

func (h *Host) SetRandAddr(addr bledefs.BleAddr) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.enter(OP_SET_RAND_ADDR, 0, nil); err != nil {
		return err
	}

	h.randAddr = &addr
	return nil
}

// Validates an advertising call against the host state.  Must be called
// with the lock held.
func (h *Host) checkInstance(op Op, instance uint8) error {
	if !h.synced {
		return hostErr(op, hs.ERR_CODE_ENOTSYNCED)
	}
	if int(instance) >= h.cfg.MaxInstances {
		return hostErr(op, hs.ERR_CODE_EINVAL)
	}
	return nil
}

func (h *Host) ExtAdvConfigure(instance uint8, params bledefs.ExtAdvParams,
	cb gap.EventFn) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.enter(OP_EXT_ADV_CONFIGURE, instance, nil); err != nil {
		return err
	}
	if err := h.checkInstance(OP_EXT_ADV_CONFIGURE, instance); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return hostErr(OP_EXT_ADV_CONFIGURE, hs.ERR_CODE_EINVAL)
	}

	switch params.OwnAddrType {
	case bledefs.BLE_ADDR_TYPE_PUBLIC, bledefs.BLE_ADDR_TYPE_RPA_PUB:
		if h.cfg.PublicAddr == nil {
			return hostErr(OP_EXT_ADV_CONFIGURE, hs.ERR_CODE_ENOADDR)
		}
	default:
		if h.randAddr == nil {
			return hostErr(OP_EXT_ADV_CONFIGURE, hs.ERR_CODE_ENOADDR)
		}
	}

	inst := h.instances[instance]
	if inst != nil && inst.extActive {
		return hostErr(OP_EXT_ADV_CONFIGURE, hs.ERR_CODE_EBUSY)
	}

	h.instances[instance] = &instState{
		configured: true,
		params:     params,
		cb:         cb,
	}

	return nil
}

func (h *Host) ExtAdvSetData(instance uint8, data *hs.Mbuf) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	var b []byte
	if data != nil {
		b = append([]byte{}, data.HandOff()...)
	}

	if err := h.enter(OP_EXT_ADV_SET_DATA, instance, b); err != nil {
		return err
	}
	if err := h.checkInstance(OP_EXT_ADV_SET_DATA, instance); err != nil {
		return err
	}

	inst := h.instances[instance]
	if inst == nil || !inst.configured {
		return hostErr(OP_EXT_ADV_SET_DATA, hs.ERR_CODE_EINVAL)
	}
	if len(b) > MaxExtAdvDataLen {
		return hostErr(OP_EXT_ADV_SET_DATA, hs.ERR_CODE_EMSGSIZE)
	}

	inst.data = b
	return nil
}

func (h *Host) PeriodicAdvConfigure(instance uint8,
	params bledefs.PeriodicAdvParams) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.enter(OP_PERIODIC_ADV_CONFIGURE, instance, nil); err != nil {
		return err
	}
	if err := h.checkInstance(OP_PERIODIC_ADV_CONFIGURE,
		instance); err != nil {

		return err
	}
	if err := params.Validate(); err != nil {
		return hostErr(OP_PERIODIC_ADV_CONFIGURE, hs.ERR_CODE_EINVAL)
	}

	inst := h.instances[instance]
	if inst == nil || !inst.configured {
		return hostErr(OP_PERIODIC_ADV_CONFIGURE, hs.ERR_CODE_EINVAL)
	}
	if inst.periodicActive {
		return hostErr(OP_PERIODIC_ADV_CONFIGURE, hs.ERR_CODE_EBUSY)
	}

	inst.periodicCfgd = true
	inst.periodicParams = params
	return nil
}

func (h *Host) PeriodicAdvStart(instance uint8) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.enter(OP_PERIODIC_ADV_START, instance, nil); err != nil {
		return err
	}
	if err := h.checkInstance(OP_PERIODIC_ADV_START, instance); err != nil {
		return err
	}

	inst := h.instances[instance]
	if inst == nil || !inst.periodicCfgd {
		return hostErr(OP_PERIODIC_ADV_START, hs.ERR_CODE_EINVAL)
	}
	if inst.periodicActive {
		return hostErr(OP_PERIODIC_ADV_START, hs.ERR_CODE_EALREADY)
	}

	inst.periodicActive = true
	return nil
}

func (h *Host) ExtAdvStart(instance uint8, durationMs int,
	maxEvents int) error {

	h.mtx.Lock()
	defer h.mtx.Unlock()

	if err := h.enter(OP_EXT_ADV_START, instance, nil); err != nil {
		return err
	}
	if err := h.checkInstance(OP_EXT_ADV_START, instance); err != nil {
		return err
	}

	inst := h.instances[instance]
	if inst == nil || !inst.configured {
		return hostErr(OP_EXT_ADV_START, hs.ERR_CODE_EINVAL)
	}
	if inst.extActive {
		return hostErr(OP_EXT_ADV_START, hs.ERR_CODE_EALREADY)
	}

	inst.extActive = true
	return nil
}
