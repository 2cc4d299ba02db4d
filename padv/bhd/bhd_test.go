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
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/evq"
	"mynewt.apache.org/blepadv/padv/gap"
	"mynewt.apache.org/blepadv/padv/hs"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

// fakeChild answers requests the way blehostd would.
type fakeChild struct {
	mtx      sync.Mutex
	synced   bool
	statuses map[MsgType]int
	silent   map[MsgType]bool
	reqs     []MsgType
	advData  []byte
	stopped  bool

	rxCh  chan []byte
	errCh chan error
}

func newFakeChild(synced bool) *fakeChild {
	return &fakeChild{
		synced:   synced,
		statuses: map[MsgType]int{},
		silent:   map[MsgType]bool{},
		rxCh:     make(chan []byte, 64),
		errCh:    make(chan error, 1),
	}
}

func (fc *fakeChild) Start() error { return nil }

func (fc *fakeChild) Stop() {
	fc.mtx.Lock()
	defer fc.mtx.Unlock()

	fc.stopped = true
}

func (fc *fakeChild) FromChild() <-chan []byte { return fc.rxCh }
func (fc *fakeChild) ErrChild() <-chan error   { return fc.errCh }

func (fc *fakeChild) send(m map[string]interface{}) {
	j, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	fc.rxCh <- j
}

func (fc *fakeChild) sendEvt(typ MsgType, fields map[string]interface{}) {
	m := map[string]interface{}{
		"op":   "event",
		"type": MsgTypeToString(typ),
		"seq":  uint32(BLE_SEQ_NONE),
	}
	for k, v := range fields {
		m[k] = v
	}
	fc.send(m)
}

func (fc *fakeChild) Tx(data []byte) error {
	var req struct {
		BleMsgBase
		AddrType bledefs.BleAddrType `json:"addr_type"`
		Data     BleBytes            `json:"data"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	fc.mtx.Lock()
	fc.reqs = append(fc.reqs, req.Type)
	silent := fc.silent[req.Type]
	status := fc.statuses[req.Type]
	synced := fc.synced
	if req.Type == MSG_TYPE_EXT_ADV_SET_DATA && status == 0 {
		fc.advData = req.Data.Bytes
	}
	fc.mtx.Unlock()

	if silent {
		return nil
	}

	rsp := map[string]interface{}{
		"op":   "response",
		"type": MsgTypeToString(req.Type),
		"seq":  uint32(req.Seq),
	}

	switch req.Type {
	case MSG_TYPE_SYNC:
		rsp["synced"] = synced
	case MSG_TYPE_RESET:
	case MSG_TYPE_COPY_ADDR:
		rsp["status"] = status
		rsp["addr"] = "0a:0b:0c:0d:0e:0f"
		if req.AddrType != bledefs.BLE_ADDR_TYPE_PUBLIC && status == 0 {
			rsp["status"] = 14
		}
	case MSG_TYPE_GEN_RAND_ADDR:
		rsp["status"] = status
		rsp["addr"] = "c1:02:03:04:05:06"
	case MSG_TYPE_EXT_ADV_CONFIGURE:
		rsp["status"] = status
		rsp["selected_tx_power"] = 0
	default:
		rsp["status"] = status
	}

	fc.send(rsp)
	return nil
}

func (fc *fakeChild) requests() []MsgType {
	fc.mtx.Lock()
	defer fc.mtx.Unlock()

	return append([]MsgType(nil), fc.reqs...)
}

func testXportCfg() XportCfg {
	cfg := NewXportCfg()
	cfg.BlehostdRspTimeout = 200 * time.Millisecond
	cfg.SyncTimeout = 200 * time.Millisecond
	return cfg
}

type hostFixture struct {
	host *Host
	fc   *fakeChild
	q    *evq.EventQ

	mtx    sync.Mutex
	syncs  int
	resets []int
	fails  []error
}

func newHostFixture(t *testing.T, synced bool) *hostFixture {
	fc := newFakeChild(synced)
	f := &hostFixture{
		host: newHost(newBleXport(testXportCfg(), fc)),
		fc:   fc,
		q:    evq.NewEventQ("bhd-test", 16),
	}

	ctx, cancel := context.WithCancel(context.Background())
	go f.q.Run(ctx)
	t.Cleanup(cancel)

	return f
}

func (f *hostFixture) cfg() hs.Cfg {
	return hs.Cfg{
		SyncCb: func() {
			f.mtx.Lock()
			f.syncs++
			f.mtx.Unlock()
		},
		ResetCb: func(reason int) {
			f.mtx.Lock()
			f.resets = append(f.resets, reason)
			f.mtx.Unlock()
		},
		FailCb: func(err error) {
			f.mtx.Lock()
			f.fails = append(f.fails, err)
			f.mtx.Unlock()
		},
	}
}

func (f *hostFixture) syncCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	return f.syncs
}

func (f *hostFixture) start(t *testing.T) {
	require.NoError(t, f.host.Start(f.cfg(), f.q))
	t.Cleanup(func() { f.host.Stop() })
}

var testParams = bledefs.ExtAdvParams{
	OwnAddrType:  bledefs.BLE_ADDR_TYPE_PUBLIC,
	ItvlMin:      1600,
	ItvlMax:      1600,
	PrimaryPhy:   bledefs.BLE_PHY_1M,
	SecondaryPhy: bledefs.BLE_PHY_1M,
}

func TestStartPostsSyncWhenAlreadySynced(t *testing.T) {
	f := newHostFixture(t, true)
	f.start(t)

	assert.Eventually(t, func() bool { return f.syncCount() == 1 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, []MsgType{MSG_TYPE_SYNC}, f.fc.requests())
}

func TestStartWaitsForSyncEvent(t *testing.T) {
	f := newHostFixture(t, false)

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.fc.sendEvt(MSG_TYPE_SYNC_EVT, map[string]interface{}{
			"synced": true,
		})
	}()

	f.start(t)
	assert.Eventually(t, func() bool { return f.syncCount() == 1 },
		time.Second, 5*time.Millisecond)
}

func TestStartTimesOutWithoutSync(t *testing.T) {
	f := newHostFixture(t, false)

	err := f.host.Start(f.cfg(), f.q)
	require.Error(t, err)
	assert.True(t, padvutil.IsXport(err))
	assert.Equal(t, 0, f.syncCount())
	assert.True(t, f.fc.stopped)
}

func TestAdvertisingSequence(t *testing.T) {
	f := newHostFixture(t, true)
	f.start(t)

	addr, err := f.host.CopyAddr(bledefs.BLE_ADDR_TYPE_PUBLIC)
	require.NoError(t, err)
	assert.Equal(t, "0a:0b:0c:0d:0e:0f", addr.String())

	require.NoError(t, f.host.ExtAdvConfigure(0, testParams,
		func(gap.RawEvent) int { return 0 }))

	pool := &hs.HeapPool{Blocks: 1}
	mbuf, err := pool.Get(bledefs.BLE_HCI_MAX_ADV_DATA_LEN)
	require.NoError(t, err)
	require.NoError(t, mbuf.Append([]byte{0x02, 0x01, 0x06}))

	require.NoError(t, f.host.ExtAdvSetData(0, mbuf))
	assert.True(t, mbuf.HandedOff())
	assert.Equal(t, 0, pool.InUse())

	require.NoError(t, f.host.PeriodicAdvConfigure(0,
		bledefs.PeriodicAdvParams{ItvlMin: 80, ItvlMax: 80}))
	require.NoError(t, f.host.PeriodicAdvStart(0))
	require.NoError(t, f.host.ExtAdvStart(0, 0, 0))

	assert.Equal(t, []MsgType{
		MSG_TYPE_SYNC,
		MSG_TYPE_COPY_ADDR,
		MSG_TYPE_EXT_ADV_CONFIGURE,
		MSG_TYPE_EXT_ADV_SET_DATA,
		MSG_TYPE_PERIODIC_ADV_CONFIGURE,
		MSG_TYPE_PERIODIC_ADV_START,
		MSG_TYPE_EXT_ADV_START,
	}, f.fc.requests())

	f.fc.mtx.Lock()
	assert.Equal(t, []byte{0x02, 0x01, 0x06}, f.fc.advData)
	f.fc.mtx.Unlock()
}

func TestNonzeroStatusIsBleHostError(t *testing.T) {
	f := newHostFixture(t, true)
	f.start(t)

	f.fc.mtx.Lock()
	f.fc.statuses[MSG_TYPE_PERIODIC_ADV_START] = hs.ERR_CODE_EINVAL
	f.fc.mtx.Unlock()

	err := f.host.PeriodicAdvStart(0)
	require.Error(t, err)

	bhe := padvutil.ToBleHost(err)
	require.NotNil(t, bhe)
	assert.Equal(t, hs.ERR_CODE_EINVAL, bhe.Status)
}

func TestMissingAddressIsBleHostError(t *testing.T) {
	f := newHostFixture(t, true)
	f.start(t)

	_, err := f.host.CopyAddr(bledefs.BLE_ADDR_TYPE_RANDOM)
	assert.True(t, padvutil.IsBleHost(err))
}

func TestErrorResponseIsBleHostError(t *testing.T) {
	f := newHostFixture(t, true)
	f.start(t)

	f.fc.mtx.Lock()
	f.fc.silent[MSG_TYPE_SET_RAND_ADDR] = true
	f.fc.mtx.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- f.host.SetRandAddr(bledefs.BleAddr{})
	}()

	// Answer the pending request with a generic error response.
	var seq BleSeq
	require.Eventually(t, func() bool {
		reqs := f.fc.requests()
		return len(reqs) == 2 && reqs[1] == MSG_TYPE_SET_RAND_ADDR
	}, time.Second, time.Millisecond)

	f.host.bx.d.mtx.Lock()
	for key := range f.host.bx.d.lt {
		if key.Seq != BLE_SEQ_NONE {
			seq = key.Seq
		}
	}
	f.host.bx.d.mtx.Unlock()

	f.fc.send(map[string]interface{}{
		"op":     "response",
		"type":   "error",
		"seq":    uint32(seq),
		"status": 5,
		"msg":    "bad request",
	})

	err := <-done
	bhe := padvutil.ToBleHost(err)
	require.NotNil(t, bhe)
	assert.Equal(t, 5, bhe.Status)
}

func TestMissingResponseTimesOut(t *testing.T) {
	f := newHostFixture(t, true)
	f.start(t)

	f.fc.mtx.Lock()
	f.fc.silent[MSG_TYPE_EXT_ADV_START] = true
	f.fc.mtx.Unlock()

	err := f.host.ExtAdvStart(0, 0, 0)
	require.Error(t, err)
	assert.True(t, padvutil.IsXport(err))
}

func TestEventsReachCallbacks(t *testing.T) {
	f := newHostFixture(t, true)
	f.start(t)

	gapCh := make(chan gap.RawEvent, 1)
	require.NoError(t, f.host.ExtAdvConfigure(0, testParams,
		func(raw gap.RawEvent) int {
			gapCh <- raw
			return 0
		}))

	f.fc.sendEvt(MSG_TYPE_GAP_EVT, map[string]interface{}{
		"gap_type": int(gap.EVENT_ADV_COMPLETE),
		"instance": 0,
		"reason":   13,
	})

	select {
	case raw := <-gapCh:
		assert.Equal(t, gap.RawEvent{
			Type:     int(gap.EVENT_ADV_COMPLETE),
			Instance: 0,
			Reason:   13,
		}, raw)
	case <-time.After(time.Second):
		t.Fatal("gap event not delivered")
	}

	f.fc.sendEvt(MSG_TYPE_RESET_EVT, map[string]interface{}{"reason": 8})
	f.fc.sendEvt(MSG_TYPE_SYNC_EVT, map[string]interface{}{"synced": true})

	assert.Eventually(t, func() bool {
		f.mtx.Lock()
		defer f.mtx.Unlock()
		return len(f.resets) == 1 && f.syncs == 2
	}, time.Second, 5*time.Millisecond)

	f.mtx.Lock()
	assert.Equal(t, []int{8}, f.resets)
	f.mtx.Unlock()
}

func TestChildFailureIsReported(t *testing.T) {
	f := newHostFixture(t, true)
	f.start(t)

	f.fc.errCh <- fmt.Errorf("socket closed")

	assert.Eventually(t, func() bool {
		f.mtx.Lock()
		defer f.mtx.Unlock()
		return len(f.fails) == 1
	}, time.Second, 5*time.Millisecond)

	f.mtx.Lock()
	assert.True(t, padvutil.IsXport(f.fails[0]))
	f.mtx.Unlock()

	_, err := f.host.GenRandAddr()
	assert.True(t, padvutil.IsXport(err))
}

func TestStopResetsController(t *testing.T) {
	fc := newFakeChild(true)
	h := newHost(newBleXport(testXportCfg(), fc))
	q := evq.NewEventQ("bhd-test", 16)

	require.NoError(t, h.Start(hs.Cfg{}, q))
	assert.True(t, padvutil.IsAlready(h.Start(hs.Cfg{}, q)))
	require.NoError(t, h.Stop())

	assert.Equal(t, []MsgType{MSG_TYPE_SYNC, MSG_TYPE_RESET}, fc.requests())
	assert.True(t, fc.stopped)
	assert.Error(t, h.Stop())
}

func TestBleBytesEncoding(t *testing.T) {
	j, err := json.Marshal(BleBytes{[]byte{0x02, 0x01, 0x06}})
	require.NoError(t, err)
	assert.Equal(t, `"0x02:0x01:0x06"`, string(j))

	var bb BleBytes
	assert.Error(t, json.Unmarshal([]byte(`"02:01"`), &bb))
}

func TestListenerTableRouting(t *testing.T) {
	lt := listenerTable{}

	rsp := NewListener(SeqKey(7))
	evt := NewListener(TypeKey(MSG_TYPE_GAP_EVT))
	require.NoError(t, lt.add(rsp))
	require.NoError(t, lt.add(evt))
	assert.Error(t, lt.add(NewListener(SeqKey(7))))

	assert.Equal(t, rsp, lt.find(7, MSG_TYPE_GAP_EVT))
	assert.Equal(t, evt, lt.find(8, MSG_TYPE_GAP_EVT))
	assert.Nil(t, lt.find(8, MSG_TYPE_RESET_EVT))

	assert.False(t, lt.remove(NewListener(SeqKey(7))))
	assert.True(t, lt.remove(rsp))
	assert.False(t, lt.remove(rsp))

	assert.Equal(t, []*Listener{evt}, lt.drain())
	assert.Empty(t, lt)
}
