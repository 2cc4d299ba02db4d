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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mynewt.apache.org/blepadv/padv/adv"
	"mynewt.apache.org/blepadv/padv/bhd"
	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/lifecycle"
	"mynewt.apache.org/blepadv/padv/sim"
)

func TestDefaultsMatchAdvertiser(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	appCfg, err := cfg.AppCfg()
	require.NoError(t, err)

	assert.Equal(t, adv.NewCfg(), appCfg.Adv)
	assert.Equal(t, lifecycle.NewTaskCfg(), appCfg.Task)
	assert.False(t, appCfg.PreferRandom)

	assert.Equal(t, "sim", cfg.Host.Type)
	assert.Equal(t, "dev=/dev/ttyACM0,baud=115200", cfg.Console.ConnString)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
host:
  type: bhd
  connstring: bhd_path=/usr/bin/blehostd,ctlr_path=/dev/ttyUSB0
instance:
  own_addr_type: random
  itvl_min: 160
  itvl_max: 320
  secondary_phy: 2m
periodic:
  itvl_max: 160
task:
  startup_wait: 1s
`))
	require.NoError(t, err)

	ext, err := cfg.ExtAdvParams()
	require.NoError(t, err)
	assert.Equal(t, bledefs.BLE_ADDR_TYPE_RANDOM, ext.OwnAddrType)
	assert.Equal(t, uint32(160), ext.ItvlMin)
	assert.Equal(t, uint32(320), ext.ItvlMax)
	assert.Equal(t, bledefs.BLE_PHY_1M, ext.PrimaryPhy)
	assert.Equal(t, bledefs.BLE_PHY_2M, ext.SecondaryPhy)

	periodic := cfg.PeriodicAdvParams()
	assert.Equal(t, uint16(80), periodic.ItvlMin)
	assert.Equal(t, uint16(160), periodic.ItvlMax)

	assert.Equal(t, time.Second, cfg.Task.StartupWait)
	assert.Equal(t, 2*time.Second, cfg.Task.Heartbeat)

	h, err := cfg.BuildHost()
	require.NoError(t, err)
	assert.IsType(t, &bhd.Host{}, h)
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"min above max", "instance: {itvl_min: 3200, itvl_max: 1600}"},
		{"ext interval too short", "instance: {itvl_min: 16, itvl_max: 16}"},
		{"periodic min above max",
			"periodic: {itvl_min: 100, itvl_max: 80}"},
		{"periodic interval too short",
			"periodic: {itvl_min: 5, itvl_max: 5}"},
		{"unknown address type", "instance: {own_addr_type: bogus}"},
		{"unknown phy", "instance: {primary_phy: 3m}"},
		{"2m primary phy", "instance: {primary_phy: 2m}"},
		{"unknown host type", "host: {type: hci}"},
		{"zero heartbeat", "task: {heartbeat: 0s}"},
		{"malformed yaml", "instance: ["},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yml"))
	assert.Error(t, err, "explicit path must exist")

	path := filepath.Join(dir, "blepadv.yml")
	require.NoError(t, ioutil.WriteFile(path,
		[]byte("instance: {sid: 3}\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), cfg.Instance.Sid)
}

func TestParseSimConnString(t *testing.T) {
	hc, err := ParseSimConnString("")
	require.NoError(t, err)
	assert.Equal(t, sim.NewHostCfg(), hc)

	hc, err = ParseSimConnString(
		"public_addr=none,rand_addr=c0:01:02:03:04:05,gen_rand=false," +
			"sync_delay=50ms")
	require.NoError(t, err)
	assert.Nil(t, hc.PublicAddr)
	require.NotNil(t, hc.RandAddr)
	assert.Equal(t, "c0:01:02:03:04:05", hc.RandAddr.String())
	assert.False(t, hc.CanGenRand)
	assert.Equal(t, 50*time.Millisecond, hc.SyncDelay)

	_, err = ParseSimConnString("public_addr=xyz")
	assert.Error(t, err)
	_, err = ParseSimConnString("color=blue")
	assert.Error(t, err)
}

func TestParseBhdConnString(t *testing.T) {
	xc, err := ParseBhdConnString(
		"bhd_path=/usr/bin/blehostd,ctlr_path=/dev/ttyUSB0,rsp_tmo=5s")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/blehostd", xc.BlehostdPath)
	assert.Equal(t, "/dev/ttyUSB0", xc.DevPath)
	assert.Equal(t, "/tmp/blehostd-uds", xc.SockPath)
	assert.Equal(t, 5*time.Second, xc.BlehostdRspTimeout)
	assert.Equal(t, time.Second, xc.BlehostdAcceptTimeout)

	_, err = ParseBhdConnString("ctlr_path=/dev/ttyUSB0")
	assert.Error(t, err)
	_, err = ParseBhdConnString(
		"bhd_path=/usr/bin/blehostd,ctlr_path=/dev/ttyUSB0,rsp_tmo=soon")
	assert.Error(t, err)
}

func TestParseSerialConnString(t *testing.T) {
	sc, err := ParseSerialConnString("/dev/ttyACM1")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM1", sc.DevPath)
	assert.Equal(t, 115200, sc.Baud)

	sc, err = ParseSerialConnString("dev=/dev/ttyUSB0,baud=9600,read_tmo=2s")
	require.NoError(t, err)
	assert.Equal(t, 9600, sc.Baud)
	assert.Equal(t, 2*time.Second, sc.ReadTimeout)

	_, err = ParseSerialConnString("dev=/dev/ttyUSB0,baud=fast")
	assert.Error(t, err)
	_, err = ParseSerialConnString("baud=9600")
	assert.Error(t, err)
}
