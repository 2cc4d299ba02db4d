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
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blepadv/padv/adv"
	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/hs"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

// Controller reacts to host lifecycle events.  It owns the advertising
// instance, the worker's startup semaphore, and the worker itself.
type Controller struct {
	host    hs.Host
	inst    *adv.Instance
	cfgr    *adv.Configurator
	taskCfg TaskCfg
	sem     *padvutil.Sem
	advBlk  padvutil.Blocker

	// Use a random static address even if a public one is available.
	PreferRandom bool

	// Invoked with any error that must end the process.
	Fatal func(err error)

	// Extra per-beat hook for the worker's heartbeat.
	OnBeat func(n uint64)

	mtx      sync.Mutex
	ctx      context.Context
	worker   *Worker
	identity bledefs.BleDev
	resets   int
}

func NewController(host hs.Host, inst *adv.Instance, cfgr *adv.Configurator,
	taskCfg TaskCfg) *Controller {

	c := &Controller{
		host:    host,
		inst:    inst,
		cfgr:    cfgr,
		taskCfg: taskCfg,
		sem:     padvutil.NewSem(0, 1),
		ctx:     context.Background(),
	}
	c.advBlk.Start()

	return c
}

// Bind sets the context the worker runs under.  It must be called before the
// host is started.
func (c *Controller) Bind(ctx context.Context) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.ctx = ctx
}

func (c *Controller) fatal(err error) {
	if c.Fatal != nil {
		c.Fatal(err)
	} else {
		log.Errorf("fatal: %s", err.Error())
	}
}

// OnReset reports a host stack reset.  The advertiser is not reconfigured.
func (c *Controller) OnReset(reason int) {
	c.mtx.Lock()
	c.resets++
	c.mtx.Unlock()

	log.Infof("Resetting state; reason=%d", reason)
	log.Debugf("reset reason %d: %s", reason, hs.ErrCodeToString(reason))
}

// OnSync makes sure the device has an identity address and launches the
// worker.  The worker is launched at most once; later syncs only refresh the
// identity address.
func (c *Controller) OnSync() error {
	dev, err := hs.EnsureAddr(c.host, c.PreferRandom)
	if err != nil {
		return err
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.identity = dev
	log.Debugf("host synced; identity=%s", dev.String())

	if c.worker != nil {
		log.Infof("host resynced; advertiser not reconfigured (state=%s)",
			c.inst.State())
		return nil
	}

	w := NewWorker(c.taskCfg, c.inst, c.cfgr, c.sem)
	w.hb.OnBeat = c.OnBeat
	w.OnStarted = func() { c.advBlk.Unblock(nil) }
	c.worker = w

	ctx := c.ctx
	w.Start(ctx, func(err error) {
		if err == nil {
			err = errors.New("worker exited")
		}
		// No effect if advertising already started.
		c.advBlk.Unblock(err)

		if ctx.Err() == nil {
			c.fatal(err)
		}
	})

	return nil
}

// Cfg returns the host callbacks that drive this controller.
func (c *Controller) Cfg() hs.Cfg {
	return hs.Cfg{
		ResetCb: c.OnReset,
		SyncCb: func() {
			if err := c.OnSync(); err != nil {
				c.fatal(err)
			}
		},
		StoreStatusCb: hs.StoreStatusDefault,
		FailCb:        c.fatal,
	}
}

// WaitAdvertising blocks until the worker has started advertising or has
// given up.  It returns the worker's error in the latter case.
func (c *Controller) WaitAdvertising(ctx context.Context,
	timeout time.Duration) error {

	val, err := c.advBlk.Wait(ctx, timeout)
	if err != nil {
		return err
	}
	if val != nil {
		return val.(error)
	}
	return nil
}

// ReleaseStartupWait lets the worker proceed without waiting out its startup
// delay.
func (c *Controller) ReleaseStartupWait() {
	c.sem.Release()
}

func (c *Controller) Worker() *Worker {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.worker
}

func (c *Controller) Identity() bledefs.BleDev {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.identity
}

func (c *Controller) Resets() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.resets
}

func (c *Controller) Instance() *adv.Instance {
	return c.inst
}
