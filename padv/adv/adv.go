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
	"fmt"
	"sync"

	"mynewt.apache.org/blepadv/padv/bledefs"
)

type Cfg struct {
	Instance uint8
	Ext      bledefs.ExtAdvParams
	Periodic bledefs.PeriodicAdvParams
}

// NewCfg returns the configuration of a non-connectable instance advertising
// every second on the 1M PHY, with a 100 ms periodic train.
func NewCfg() Cfg {
	return Cfg{
		Instance: 0,
		Ext: bledefs.ExtAdvParams{
			OwnAddrType:  bledefs.BLE_ADDR_TYPE_PUBLIC,
			ItvlMin:      1600,
			ItvlMax:      1600,
			PrimaryPhy:   bledefs.BLE_PHY_1M,
			SecondaryPhy: bledefs.BLE_PHY_1M,
			TxPower:      0,
			Sid:          0,
		},
		Periodic: bledefs.PeriodicAdvParams{
			ItvlMin:        80,
			ItvlMax:        80,
			IncludeTxPower: false,
		},
	}
}

func (c *Cfg) Validate() error {
	if err := c.Ext.Validate(); err != nil {
		return err
	}
	return c.Periodic.Validate()
}

type State int

const (
	STATE_UNCONFIGURED State = iota
	STATE_EXT_CONFIGURED
	STATE_DATA_SET
	STATE_PERIODIC_CONFIGURED
	STATE_PERIODIC_STARTED
	STATE_EXT_STARTED
)

var StateStringMap = map[State]string{
	STATE_UNCONFIGURED:        "unconfigured",
	STATE_EXT_CONFIGURED:      "ext_configured",
	STATE_DATA_SET:            "data_set",
	STATE_PERIODIC_CONFIGURED: "periodic_configured",
	STATE_PERIODIC_STARTED:    "periodic_started",
	STATE_EXT_STARTED:         "ext_started",
}

func (s State) String() string {
	str := StateStringMap[s]
	if str == "" {
		return "???"
	}
	return str
}

// Instance is the single advertising set managed by the advertiser.  Its
// parameters are fixed at creation; only the state changes.
type Instance struct {
	Id       uint8
	Params   bledefs.ExtAdvParams
	Periodic bledefs.PeriodicAdvParams

	mtx   sync.Mutex
	state State
}

func NewInstance(cfg Cfg) *Instance {
	return &Instance{
		Id:       cfg.Instance,
		Params:   cfg.Ext,
		Periodic: cfg.Periodic,
		state:    STATE_UNCONFIGURED,
	}
}

func (inst *Instance) State() State {
	inst.mtx.Lock()
	defer inst.mtx.Unlock()

	return inst.state
}

// Moves the instance one step along the configuration sequence.  Any other
// transition is refused.
func (inst *Instance) advance(to State) error {
	inst.mtx.Lock()
	defer inst.mtx.Unlock()

	if to != inst.state+1 {
		return fmt.Errorf("invalid advertising state transition: %s -> %s",
			inst.state, to)
	}

	inst.state = to
	return nil
}

func (inst *Instance) String() string {
	return fmt.Sprintf("instance=%d state=%s", inst.Id, inst.State())
}
