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
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blepadv/padv/adv"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

type TaskCfg struct {
	Name      string
	Prio      uint8
	StackSize int

	// How long the task waits on its startup semaphore before configuring.
	StartupWait time.Duration

	HeartbeatItvl time.Duration
}

func NewTaskCfg() TaskCfg {
	return TaskCfg{
		Name:          "blepadv_main_task",
		Prio:          0xf0,
		StackSize:     128,
		StartupWait:   500 * time.Millisecond,
		HeartbeatItvl: 2 * time.Second,
	}
}

type WorkerState int

const (
	WORKER_STATE_CREATED WorkerState = iota
	WORKER_STATE_CONFIGURING
	WORKER_STATE_HEARTBEAT
	WORKER_STATE_EXITED
)

var WorkerStateStringMap = map[WorkerState]string{
	WORKER_STATE_CREATED:     "created",
	WORKER_STATE_CONFIGURING: "configuring",
	WORKER_STATE_HEARTBEAT:   "heartbeat",
	WORKER_STATE_EXITED:      "exited",
}

func (s WorkerState) String() string {
	str := WorkerStateStringMap[s]
	if str == "" {
		return "???"
	}
	return str
}

// Worker configures the advertising instance once the host is ready, then
// idles in a heartbeat loop.
type Worker struct {
	cfg  TaskCfg
	inst *adv.Instance
	cfgr *adv.Configurator
	sem  *padvutil.Sem
	hb   Heartbeat

	// Optional; called once the instance is advertising.
	OnStarted func()

	mtx    sync.Mutex
	state  WorkerState
	err    error
	doneCh chan struct{}
}

func NewWorker(cfg TaskCfg, inst *adv.Instance, cfgr *adv.Configurator,
	sem *padvutil.Sem) *Worker {

	return &Worker{
		cfg:  cfg,
		inst: inst,
		cfgr: cfgr,
		sem:  sem,
		hb: Heartbeat{
			Interval: cfg.HeartbeatItvl,
		},
		state:  WORKER_STATE_CREATED,
		doneCh: make(chan struct{}),
	}
}

func (w *Worker) setState(s WorkerState) {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	log.Debugf("%s: %s -> %s", w.cfg.Name, w.state, s)
	w.state = s
}

func (w *Worker) State() WorkerState {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	return w.state
}

// Err returns the reason the worker exited, or nil if it is still running.
func (w *Worker) Err() error {
	w.mtx.Lock()
	defer w.mtx.Unlock()

	return w.err
}

func (w *Worker) Done() <-chan struct{} {
	return w.doneCh
}

// Run executes the task body on the calling goroutine.  It only returns if
// configuration fails or the context is done.
func (w *Worker) Run(ctx context.Context) error {
	log.Infof("BLE Periodic Advertiser main task welcomes you on-board")

	if err := w.sem.Pend(ctx, w.cfg.StartupWait); err != nil {
		if !padvutil.IsTimeout(err) {
			return err
		}
		log.Debugf("%s: startup wait elapsed", w.cfg.Name)
	}

	w.setState(WORKER_STATE_CONFIGURING)
	if err := w.cfgr.ConfigureAndStart(ctx, w.inst); err != nil {
		return err
	}

	if w.OnStarted != nil {
		w.OnStarted()
	}

	w.setState(WORKER_STATE_HEARTBEAT)
	log.Infof("Entering infinite loop")

	return w.hb.Run(ctx)
}

// Start runs the task on its own goroutine, labelled with the task's name
// and priority.  onExit is called with the task's result when it returns.
func (w *Worker) Start(ctx context.Context, onExit func(err error)) {
	labels := pprof.Labels(
		"task", w.cfg.Name,
		"prio", strconv.Itoa(int(w.cfg.Prio)))

	log.Debugf("starting task %s; prio=%d stack_size=%d",
		w.cfg.Name, w.cfg.Prio, w.cfg.StackSize)

	go pprof.Do(ctx, labels, func(ctx context.Context) {
		err := w.Run(ctx)

		w.mtx.Lock()
		w.err = err
		w.mtx.Unlock()
		w.setState(WORKER_STATE_EXITED)
		close(w.doneCh)

		if onExit != nil {
			onExit(err)
		}
	})
}
