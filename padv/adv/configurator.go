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

package adv

import (
	"context"
	"fmt"

	"github.com/fatih/structs"
	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/gap"
	"mynewt.apache.org/blepadv/padv/hs"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

// Configuration steps, as reported in a ConfigError.
const (
	STEP_PRECONDITION           = "precondition"
	STEP_EXT_ADV_CONFIGURE      = "ext_adv_configure"
	STEP_EXT_ADV_SET_DATA       = "ext_adv_set_data"
	STEP_PERIODIC_ADV_CONFIGURE = "periodic_adv_configure"
	STEP_PERIODIC_ADV_START     = "periodic_adv_start"
	STEP_EXT_ADV_START          = "ext_adv_start"
)

// Configurator brings an instance from unconfigured to broadcasting periodic
// data.
type Configurator struct {
	host    hs.Host
	handler gap.Handler

	Pool   hs.MbufPool
	Logger log.FieldLogger
}

func NewConfigurator(host hs.Host, handler gap.Handler) *Configurator {
	return &Configurator{
		host:    host,
		handler: handler,
		Pool:    hs.DefaultPool,
		Logger:  log.StandardLogger(),
	}
}

type step struct {
	name string
	to   State
	fn   func() error
}

// ConfigureAndStart runs the configuration sequence on an unconfigured
// instance.  Each step is issued only after the previous one succeeded; on
// failure the instance keeps the state reached by the last successful step
// and a *padvutil.ConfigError is returned.
func (c *Configurator) ConfigureAndStart(ctx context.Context,
	inst *Instance) error {

	if st := inst.State(); st != STATE_UNCONFIGURED {
		return padvutil.NewConfigError(inst.Id, STEP_PRECONDITION,
			fmt.Errorf("instance not unconfigured; state=%s", st))
	}

	steps := []step{
		{
			name: STEP_EXT_ADV_CONFIGURE,
			to:   STATE_EXT_CONFIGURED,
			fn: func() error {
				return c.host.ExtAdvConfigure(inst.Id, inst.Params,
					gap.Callback(c.handler))
			},
		},
		{
			name: STEP_EXT_ADV_SET_DATA,
			to:   STATE_DATA_SET,
			fn: func() error {
				m, err := BuildAdvData(c.Pool)
				if err != nil {
					return err
				}

				// The host owns the buffer from here on.
				return c.host.ExtAdvSetData(inst.Id, m)
			},
		},
		{
			name: STEP_PERIODIC_ADV_CONFIGURE,
			to:   STATE_PERIODIC_CONFIGURED,
			fn: func() error {
				return c.host.PeriodicAdvConfigure(inst.Id, inst.Periodic)
			},
		},
		{
			name: STEP_PERIODIC_ADV_START,
			to:   STATE_PERIODIC_STARTED,
			fn: func() error {
				return c.host.PeriodicAdvStart(inst.Id)
			},
		},
		{
			name: STEP_EXT_ADV_START,
			to:   STATE_EXT_STARTED,
			fn: func() error {
				return c.host.ExtAdvStart(inst.Id, 0, 0)
			},
		},
	}

	for _, s := range steps {
		// Check for abort before each step.
		select {
		case <-ctx.Done():
			return padvutil.NewConfigError(inst.Id, s.name, ctx.Err())
		default:
		}

		if err := s.fn(); err != nil {
			return padvutil.NewConfigError(inst.Id, s.name, err)
		}

		if err := inst.advance(s.to); err != nil {
			return padvutil.NewConfigError(inst.Id, s.name, err)
		}

		c.Logger.Debugf("instance %d: %s done; state=%s",
			inst.Id, s.name, s.to)
	}

	fields := log.Fields(structs.Map(inst.Params))
	for k, v := range structs.Map(inst.Periodic) {
		fields[k] = v
	}
	fields["adv_itvl"] =
		bledefs.ExtAdvItvlDuration(inst.Params.ItvlMax).String()
	fields["periodic_itvl"] =
		bledefs.PeriodicAdvItvlDuration(inst.Periodic.ItvlMax).String()
	c.Logger.WithFields(fields).Infof("Instance %d started (periodic)",
		inst.Id)

	return nil
}
