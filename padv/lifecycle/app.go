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

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blepadv/padv/adv"
	"mynewt.apache.org/blepadv/padv/evq"
	"mynewt.apache.org/blepadv/padv/gap"
	"mynewt.apache.org/blepadv/padv/hs"
)

type AppCfg struct {
	Adv          adv.Cfg
	Task         TaskCfg
	PreferRandom bool
	QueueDepth   int

	// Optional.
	OnBeat func(n uint64)
}

func NewAppCfg() AppCfg {
	return AppCfg{
		Adv:        adv.NewCfg(),
		Task:       NewTaskCfg(),
		QueueDepth: 32,
	}
}

// MainLoop drives the host event queue on the calling goroutine until the
// context is done.
func MainLoop(ctx context.Context, q *evq.EventQ) error {
	log.Debugf("entering main loop; evq=%s", q.Name())
	return q.Run(ctx)
}

// App is a periodic advertiser bound to one host.
type App struct {
	host hs.Host
	cfg  AppCfg
	q    *evq.EventQ
	inst *adv.Instance
	cfgr *adv.Configurator
	ctl  *Controller

	mtx      sync.Mutex
	fatalErr error
	cancel   context.CancelFunc
}

func NewApp(host hs.Host, cfg AppCfg) (*App, error) {
	if err := cfg.Adv.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid advertising configuration")
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = NewAppCfg().QueueDepth
	}

	inst := adv.NewInstance(cfg.Adv)
	cfgr := adv.NewConfigurator(host, gap.NewDispatcher())

	ctl := NewController(host, inst, cfgr, cfg.Task)
	ctl.PreferRandom = cfg.PreferRandom
	ctl.OnBeat = cfg.OnBeat

	a := &App{
		host: host,
		cfg:  cfg,
		q:    evq.NewEventQ("blepadv", cfg.QueueDepth),
		inst: inst,
		cfgr: cfgr,
		ctl:  ctl,
	}
	ctl.Fatal = a.fatal

	return a, nil
}

func (a *App) fatal(err error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	if a.fatalErr == nil {
		a.fatalErr = err
	}
	if a.cancel != nil {
		a.cancel()
	}
}

// Run starts the host and runs the main loop until the context is done or a
// fatal error occurs.  A fatal error is returned; a cancelled context yields
// nil.
func (a *App) Run(ctx context.Context) error {
	log.Infof("Hello, BLE periodic advertiser!")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mtx.Lock()
	a.cancel = cancel
	a.mtx.Unlock()

	a.ctl.Bind(runCtx)

	if err := a.host.Start(a.ctl.Cfg(), a.q); err != nil {
		return errors.Wrap(err, "failed to start host")
	}

	loopErr := MainLoop(runCtx, a.q)
	cancel()

	// The worker may be blocked in a host call; stopping the host fails it.
	if err := a.host.Stop(); err != nil {
		log.Debugf("failed to stop host: %s", err.Error())
	}

	if w := a.ctl.Worker(); w != nil {
		<-w.Done()
	}

	a.mtx.Lock()
	fatalErr := a.fatalErr
	a.mtx.Unlock()

	if fatalErr != nil {
		return fatalErr
	}
	if ctx.Err() != nil {
		return nil
	}
	return loopErr
}

func (a *App) Host() hs.Host {
	return a.host
}

func (a *App) Queue() *evq.EventQ {
	return a.q
}

func (a *App) Instance() *adv.Instance {
	return a.inst
}

func (a *App) Controller() *Controller {
	return a.ctl
}
