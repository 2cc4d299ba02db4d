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

package lifecycle

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/blepadv/padv/adv"
	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/evq"
	"mynewt.apache.org/blepadv/padv/gap"
	"mynewt.apache.org/blepadv/padv/hs"
	"mynewt.apache.org/blepadv/padv/padvutil"
	"mynewt.apache.org/blepadv/padv/sim"
)

const waitFor = 2 * time.Second
const tick = 2 * time.Millisecond

func fastTaskCfg() TaskCfg {
	cfg := NewTaskCfg()
	cfg.StartupWait = 10 * time.Millisecond
	cfg.HeartbeatItvl = 5 * time.Millisecond
	return cfg
}

// Captures entries logged through the standard logger for the duration of a
// test.
func captureLog(t *testing.T) *test.Hook {
	hook := test.NewGlobal()
	prev := log.GetLevel()
	log.SetLevel(log.DebugLevel)

	t.Cleanup(func() {
		log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
		log.SetLevel(prev)
	})

	return hook
}

func messages(hook *test.Hook) []string {
	var msgs []string
	for _, e := range hook.AllEntries() {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

func indexOf(msgs []string, msg string) int {
	for i, m := range msgs {
		if m == msg {
			return i
		}
	}
	return -1
}

func newSimApp(t *testing.T, hcfg sim.HostCfg) (*App, *sim.Host) {
	host := sim.NewHost(hcfg)

	cfg := NewAppCfg()
	cfg.Task = fastTaskCfg()

	app, err := NewApp(host, cfg)
	require.NoError(t, err)

	return app, host
}

func TestHeartbeatStopsOnCancel(t *testing.T) {
	var beats uint64
	hb := Heartbeat{
		Interval: time.Millisecond,
		OnBeat:   func(n uint64) { atomic.StoreUint64(&beats, n) },
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- hb.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return atomic.LoadUint64(&beats) >= 3
	}, waitFor, tick)

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(waitFor):
		t.Fatal("heartbeat did not stop")
	}
}

func TestHeartbeatRejectsZeroInterval(t *testing.T) {
	hb := Heartbeat{}
	assert.Error(t, hb.Run(context.Background()))
}

// Scenario A: full startup, checked through the log.
func TestAppStartsPeriodicAdvertising(t *testing.T) {
	hook := captureLog(t)
	app, host := newSimApp(t, sim.NewHostCfg())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		w := app.Controller().Worker()
		return w != nil && w.State() == WORKER_STATE_HEARTBEAT
	}, waitFor, tick)

	assert.Equal(t, adv.STATE_EXT_STARTED, app.Instance().State())
	assert.Equal(t, []sim.Op{
		sim.OP_COPY_ADDR,
		sim.OP_EXT_ADV_CONFIGURE,
		sim.OP_EXT_ADV_SET_DATA,
		sim.OP_PERIODIC_ADV_CONFIGURE,
		sim.OP_PERIODIC_ADV_START,
		sim.OP_EXT_ADV_START,
	}, host.Ops())

	cancel()
	assert.NoError(t, <-done)

	msgs := messages(hook)
	hello := indexOf(msgs, "Hello, BLE periodic advertiser!")
	welcome := indexOf(msgs,
		"BLE Periodic Advertiser main task welcomes you on-board")
	started := indexOf(msgs, "Instance 0 started (periodic)")
	loop := indexOf(msgs, "Entering infinite loop")

	require.True(t, hello >= 0 && welcome >= 0 && started >= 0 && loop >= 0,
		"missing log lines: %v", msgs)
	assert.True(t, hello < welcome)
	assert.True(t, welcome < started)
	assert.True(t, started < loop)

	assert.Equal(t, bledefs.BLE_ADDR_TYPE_PUBLIC,
		app.Controller().Identity().AddrType)
}

// Scenarios B and C: GAP events after startup.
func TestAppReportsGapEvents(t *testing.T) {
	hook := captureLog(t)
	app, host := newSimApp(t, sim.NewHostCfg())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.Run(ctx)

	require.Eventually(t, func() bool {
		return app.Instance().State() == adv.STATE_EXT_STARTED
	}, waitFor, tick)

	require.NoError(t, host.RaiseGap(gap.RawEvent{
		Type:     int(gap.EVENT_ADV_COMPLETE),
		Instance: 0,
		Reason:   13,
	}))
	require.NoError(t, host.RaiseGap(gap.RawEvent{Type: 99}))

	assert.Eventually(t, func() bool {
		msgs := messages(hook)
		return indexOf(msgs, "Adv. complete, instance 0 reason 13") >= 0 &&
			indexOf(msgs, "Event 99 not handled (???)") >= 0
	}, waitFor, tick)

	assert.Equal(t, adv.STATE_EXT_STARTED, app.Instance().State())
}

// Scenario D: no usable identity address.
func TestAppWithoutAddressFails(t *testing.T) {
	hcfg := sim.NewHostCfg()
	hcfg.PublicAddr = nil
	hcfg.CanGenRand = false
	app, host := newSimApp(t, hcfg)

	errCh := make(chan error)
	go func() { errCh <- app.Run(context.Background()) }()

	select {
	case err := <-errCh:
		assert.True(t, padvutil.IsAddressResolution(err), "err=%v", err)
	case <-time.After(waitFor):
		t.Fatal("app did not fail")
	}

	assert.Nil(t, app.Controller().Worker())
	for _, op := range host.Ops() {
		assert.NotEqual(t, sim.OP_EXT_ADV_CONFIGURE, op)
	}
}

func TestAppFallsBackToRandomAddress(t *testing.T) {
	hcfg := sim.NewHostCfg()
	hcfg.PublicAddr = nil
	host := sim.NewHost(hcfg)

	cfg := NewAppCfg()
	cfg.Task = fastTaskCfg()
	cfg.Adv.Ext.OwnAddrType = bledefs.BLE_ADDR_TYPE_RANDOM

	app, err := NewApp(host, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.Run(ctx)

	require.Eventually(t, func() bool {
		return app.Instance().State() == adv.STATE_EXT_STARTED
	}, waitFor, tick)

	assert.Equal(t, bledefs.BLE_ADDR_TYPE_RANDOM,
		app.Controller().Identity().AddrType)
}

func TestAppReplacesZeroRandomAddress(t *testing.T) {
	hcfg := sim.NewHostCfg()
	hcfg.PublicAddr = nil
	hcfg.RandAddr = &bledefs.BleAddr{}
	app, host := newSimApp(t, hcfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.Run(ctx)

	require.Eventually(t, func() bool {
		return app.Controller().Worker() != nil
	}, waitFor, tick)

	id := app.Controller().Identity()
	assert.Equal(t, bledefs.BLE_ADDR_TYPE_RANDOM, id.AddrType)
	assert.False(t, id.Addr.IsZero())
	assert.Contains(t, host.Ops(), sim.OP_SET_RAND_ADDR)
}

func TestAppConfigFailureIsFatal(t *testing.T) {
	app, host := newSimApp(t, sim.NewHostCfg())
	host.FailOn(sim.OP_PERIODIC_ADV_START, hs.ERR_CODE_ECONTROLLER)

	errCh := make(chan error)
	go func() { errCh <- app.Run(context.Background()) }()

	var err error
	select {
	case err = <-errCh:
	case <-time.After(waitFor):
		t.Fatal("app did not fail")
	}

	cerr := padvutil.ToConfig(err)
	require.NotNil(t, cerr, "err=%v", err)
	assert.Equal(t, adv.STEP_PERIODIC_ADV_START, cerr.Step)
	assert.Equal(t, adv.STATE_PERIODIC_CONFIGURED, app.Instance().State())

	w := app.Controller().Worker()
	require.NotNil(t, w)
	assert.Equal(t, WORKER_STATE_EXITED, w.State())
	assert.Equal(t, err, w.Err())

	assert.Equal(t, err,
		app.Controller().WaitAdvertising(context.Background(), waitFor))
}

func TestWaitAdvertising(t *testing.T) {
	hcfg := sim.NewHostCfg()
	hcfg.AutoSync = false
	app, host := newSimApp(t, hcfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- app.Run(ctx) }()

	// Not synced; nothing can start.
	err := app.Controller().WaitAdvertising(ctx, 20*time.Millisecond)
	assert.True(t, padvutil.IsTimeout(err), "err=%v", err)

	require.Eventually(t, func() bool {
		return host.Sync() == nil
	}, waitFor, tick)

	require.NoError(t, app.Controller().WaitAdvertising(ctx, waitFor))
	periodic, ext := host.Advertising(0)
	assert.True(t, periodic)
	assert.True(t, ext)

	cancel()
	assert.NoError(t, <-done)
}

func TestReleaseStartupWait(t *testing.T) {
	host := sim.NewHost(sim.NewHostCfg())

	cfg := NewAppCfg()
	cfg.Task = fastTaskCfg()
	cfg.Task.StartupWait = time.Hour

	app, err := NewApp(host, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		w := app.Controller().Worker()
		return w != nil && w.State() == WORKER_STATE_CREATED
	}, waitFor, tick)
	assert.Empty(t, host.Calls()[1:])

	app.Controller().ReleaseStartupWait()
	require.NoError(t, app.Controller().WaitAdvertising(ctx, waitFor))
	assert.Equal(t, adv.STATE_EXT_STARTED, app.Instance().State())

	cancel()
	assert.NoError(t, <-done)
}

// Fails ExtAdvConfigure only once the host is stopped.
type stallingHost struct {
	*sim.Host

	entered chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func (h *stallingHost) ExtAdvConfigure(instance uint8,
	params bledefs.ExtAdvParams, cb gap.EventFn) error {

	close(h.entered)
	<-h.stopped
	return padvutil.NewXportError("host stopped")
}

func (h *stallingHost) Stop() error {
	h.once.Do(func() { close(h.stopped) })
	return h.Host.Stop()
}

func TestRunStopsHostBeforeWaitingForWorker(t *testing.T) {
	host := &stallingHost{
		Host:    sim.NewHost(sim.NewHostCfg()),
		entered: make(chan struct{}),
		stopped: make(chan struct{}),
	}

	cfg := NewAppCfg()
	cfg.Task = fastTaskCfg()
	app, err := NewApp(host, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- app.Run(ctx) }()

	select {
	case <-host.entered:
	case <-time.After(waitFor):
		t.Fatal("worker never configured the instance")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("run blocked on the worker")
	}

	w := app.Controller().Worker()
	require.NotNil(t, w)
	assert.True(t, padvutil.IsConfig(w.Err()), "err=%v", w.Err())
	assert.Equal(t, adv.STATE_UNCONFIGURED, app.Instance().State())
}

func TestResetIsLoggedOnly(t *testing.T) {
	hook := captureLog(t)
	app, host := newSimApp(t, sim.NewHostCfg())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.Run(ctx)

	require.Eventually(t, func() bool {
		return app.Instance().State() == adv.STATE_EXT_STARTED
	}, waitFor, tick)
	calls := len(host.Calls())

	require.NoError(t, host.Reset(hs.ERR_CODE_ECONTROLLER))
	require.Eventually(t, func() bool {
		return app.Controller().Resets() == 1
	}, waitFor, tick)

	// A resync after the reset does not launch a second worker.
	w := app.Controller().Worker()
	require.NoError(t, host.Sync())
	require.Eventually(t, func() bool {
		return indexOf(messages(hook),
			"host resynced; advertiser not reconfigured (state=ext_started)") >= 0
	}, waitFor, tick)

	assert.Same(t, w, app.Controller().Worker())
	assert.Contains(t, messages(hook), "Resetting state; reason=12")

	// Only the address lookup of the resync reached the host.
	assert.Len(t, host.Calls(), calls+1)
}

// Scenario E: nothing posts the semaphore; the worker proceeds after the
// startup wait.
func TestWorkerProceedsAfterStartupWait(t *testing.T) {
	host, inst, cfgr := syncedSimHost(t)

	taskCfg := fastTaskCfg()
	taskCfg.StartupWait = 50 * time.Millisecond
	w := NewWorker(taskCfg, inst, cfgr, padvutil.NewSem(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Now()
	w.Start(ctx, nil)

	require.Eventually(t, func() bool {
		return w.State() == WORKER_STATE_HEARTBEAT
	}, waitFor, tick)
	assert.True(t, time.Since(start) >= taskCfg.StartupWait)
	assert.Equal(t, adv.STATE_EXT_STARTED, inst.State())
	assert.Len(t, host.Calls(), 5)

	cancel()
	<-w.Done()
	assert.Equal(t, context.Canceled, w.Err())
	assert.Equal(t, WORKER_STATE_EXITED, w.State())
}

func TestWorkerStartsEarlyWhenReleased(t *testing.T) {
	_, inst, cfgr := syncedSimHost(t)

	taskCfg := fastTaskCfg()
	taskCfg.StartupWait = time.Hour

	sem := padvutil.NewSem(0, 1)
	w := NewWorker(taskCfg, inst, cfgr, sem)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx, nil)

	assert.Equal(t, WORKER_STATE_CREATED, w.State())
	sem.Release()

	assert.Eventually(t, func() bool {
		return w.State() == WORKER_STATE_HEARTBEAT
	}, waitFor, tick)
	assert.Equal(t, 0, sem.Tokens())
}

func TestWorkerExitsOnCancelDuringStartupWait(t *testing.T) {
	host, inst, cfgr := syncedSimHost(t)

	taskCfg := fastTaskCfg()
	taskCfg.StartupWait = time.Hour
	w := NewWorker(taskCfg, inst, cfgr, padvutil.NewSem(0, 1))

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx, nil)
	cancel()

	select {
	case <-w.Done():
	case <-time.After(waitFor):
		t.Fatal("worker did not exit")
	}
	assert.Equal(t, context.Canceled, w.Err())
	assert.Empty(t, host.Calls())
}

// Returns a started, synced simulated host whose callbacks go nowhere.
func syncedSimHost(t *testing.T) (*sim.Host, *adv.Instance,
	*adv.Configurator) {

	hcfg := sim.NewHostCfg()
	hcfg.AutoSync = false
	host := sim.NewHost(hcfg)

	require.NoError(t, host.Start(hs.Cfg{}, evq.NewEventQ("test", 4)))
	require.NoError(t, host.Sync())

	inst := adv.NewInstance(adv.NewCfg())
	cfgr := adv.NewConfigurator(host, gap.NewDispatcher())

	return host, inst, cfgr
}

func TestHeartbeatBeatsAfterStartup(t *testing.T) {
	host := sim.NewHost(sim.NewHostCfg())

	var beats uint64
	cfg := NewAppCfg()
	cfg.Task = fastTaskCfg()
	cfg.OnBeat = func(n uint64) { atomic.StoreUint64(&beats, n) }

	app, err := NewApp(host, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- app.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return atomic.LoadUint64(&beats) >= 2
	}, waitFor, tick)

	cancel()
	assert.NoError(t, <-done)
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	cfg := NewAppCfg()
	cfg.Adv.Ext.ItvlMin = 2000
	cfg.Adv.Ext.ItvlMax = 1000

	_, err := NewApp(sim.NewHost(sim.NewHostCfg()), cfg)
	assert.Error(t, err)
}
