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

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"mynewt.apache.org/newt/util"

	"mynewt.apache.org/blepadv/blepadv/bputil"
	"mynewt.apache.org/blepadv/padv/adv"
	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/lifecycle"
)

type HostConfig struct {
	Type       string `yaml:"type" default:"sim" structs:"type"`
	ConnString string `yaml:"connstring" default:"" structs:"connstring"`

	// Advertise from a random static address even if the device has a
	// public one.
	PreferRandom bool `yaml:"prefer_random" default:"false" structs:"prefer_random"`
}

type InstanceConfig struct {
	Id           uint8  `yaml:"id" default:"0" structs:"id"`
	OwnAddrType  string `yaml:"own_addr_type" default:"public" structs:"own_addr_type"`
	ItvlMin      uint32 `yaml:"itvl_min" default:"1600" structs:"itvl_min"`
	ItvlMax      uint32 `yaml:"itvl_max" default:"1600" structs:"itvl_max"`
	PrimaryPhy   string `yaml:"primary_phy" default:"1m" structs:"primary_phy"`
	SecondaryPhy string `yaml:"secondary_phy" default:"1m" structs:"secondary_phy"`
	TxPower      int8   `yaml:"tx_power" default:"0" structs:"tx_power"`
	Sid          uint8  `yaml:"sid" default:"0" structs:"sid"`
}

type PeriodicConfig struct {
	ItvlMin        uint16 `yaml:"itvl_min" default:"80" structs:"itvl_min"`
	ItvlMax        uint16 `yaml:"itvl_max" default:"80" structs:"itvl_max"`
	IncludeTxPower bool   `yaml:"include_tx_power" default:"false" structs:"include_tx_power"`
}

type TaskConfig struct {
	Name        string        `yaml:"name" default:"blepadv_main_task" structs:"name"`
	Prio        uint8         `yaml:"prio" default:"240" structs:"prio"`
	StackSize   int           `yaml:"stack_size" default:"128" structs:"stack_size"`
	StartupWait time.Duration `yaml:"startup_wait" default:"500ms" structs:"startup_wait"`
	Heartbeat   time.Duration `yaml:"heartbeat" default:"2s" structs:"heartbeat"`
}

type ConsoleConfig struct {
	ConnString string `yaml:"connstring" default:"dev=/dev/ttyACM0,baud=115200" structs:"connstring"`
}

type Config struct {
	Host     HostConfig     `yaml:"host" structs:"host"`
	Instance InstanceConfig `yaml:"instance" structs:"instance"`
	Periodic PeriodicConfig `yaml:"periodic" structs:"periodic"`
	Task     TaskConfig     `yaml:"task" structs:"task"`
	Console  ConsoleConfig  `yaml:"console" structs:"console"`
}

func NewConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

func DefaultPath() (string, error) {
	dir, err := homedir.Dir()
	if err != nil {
		return "", util.ChildNewtError(err)
	}

	return filepath.Join(dir, bputil.ToolInfo.CfgFilename), nil
}

// Parse applies YAML settings on top of the defaults.
func Parse(blob []byte) (*Config, error) {
	cfg := NewConfig()
	if err := yaml.Unmarshal(blob, cfg); err != nil {
		return nil, util.FmtNewtError("Invalid configuration: %s", err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads the configuration file at path.  An empty path selects the
// default file in the user's home directory; the defaults are used if that
// file does not exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	blob, err := ioutil.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			log.Debugf("no configuration file at %s; using defaults", path)
			cfg := NewConfig()
			return cfg, cfg.Validate()
		}
		return nil, util.ChildNewtError(err)
	}

	log.Debugf("loading configuration from %s", path)
	return Parse(blob)
}

func (c *Config) ExtAdvParams() (bledefs.ExtAdvParams, error) {
	ownAddrType, err := bledefs.BleAddrTypeFromString(c.Instance.OwnAddrType)
	if err != nil {
		return bledefs.ExtAdvParams{}, util.ChildNewtError(err)
	}
	primary, err := bledefs.BlePhyFromString(c.Instance.PrimaryPhy)
	if err != nil {
		return bledefs.ExtAdvParams{}, util.ChildNewtError(err)
	}
	secondary, err := bledefs.BlePhyFromString(c.Instance.SecondaryPhy)
	if err != nil {
		return bledefs.ExtAdvParams{}, util.ChildNewtError(err)
	}

	return bledefs.ExtAdvParams{
		OwnAddrType:  ownAddrType,
		ItvlMin:      c.Instance.ItvlMin,
		ItvlMax:      c.Instance.ItvlMax,
		PrimaryPhy:   primary,
		SecondaryPhy: secondary,
		TxPower:      c.Instance.TxPower,
		Sid:          c.Instance.Sid,
	}, nil
}

func (c *Config) PeriodicAdvParams() bledefs.PeriodicAdvParams {
	return bledefs.PeriodicAdvParams{
		ItvlMin:        c.Periodic.ItvlMin,
		ItvlMax:        c.Periodic.ItvlMax,
		IncludeTxPower: c.Periodic.IncludeTxPower,
	}
}

func (c *Config) AdvCfg() (adv.Cfg, error) {
	ext, err := c.ExtAdvParams()
	if err != nil {
		return adv.Cfg{}, err
	}

	return adv.Cfg{
		Instance: c.Instance.Id,
		Ext:      ext,
		Periodic: c.PeriodicAdvParams(),
	}, nil
}

func (c *Config) TaskCfg() lifecycle.TaskCfg {
	return lifecycle.TaskCfg{
		Name:          c.Task.Name,
		Prio:          c.Task.Prio,
		StackSize:     c.Task.StackSize,
		StartupWait:   c.Task.StartupWait,
		HeartbeatItvl: c.Task.Heartbeat,
	}
}

// AppCfg converts the configuration into the advertiser's settings.
func (c *Config) AppCfg() (lifecycle.AppCfg, error) {
	advCfg, err := c.AdvCfg()
	if err != nil {
		return lifecycle.AppCfg{}, err
	}

	appCfg := lifecycle.NewAppCfg()
	appCfg.Adv = advCfg
	appCfg.Task = c.TaskCfg()
	appCfg.PreferRandom = c.Host.PreferRandom

	return appCfg, nil
}

func (c *Config) Validate() error {
	advCfg, err := c.AdvCfg()
	if err != nil {
		return err
	}
	if err := advCfg.Validate(); err != nil {
		return util.ChildNewtError(err)
	}

	if c.Task.Name == "" {
		return util.NewNewtError("Invalid task config: empty name")
	}
	if c.Task.StartupWait < 0 {
		return util.FmtNewtError("Invalid task config: startup_wait=%s",
			c.Task.StartupWait)
	}
	if c.Task.Heartbeat <= 0 {
		return util.FmtNewtError("Invalid task config: heartbeat=%s",
			c.Task.Heartbeat)
	}

	if _, err := HostTypeFromString(c.Host.Type); err != nil {
		return err
	}

	return nil
}
