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
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"mynewt.apache.org/newt/util"

	"mynewt.apache.org/blepadv/padv/bhd"
	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/hs"
	"mynewt.apache.org/blepadv/padv/sim"
)

type HostType int

const (
	HOST_TYPE_SIM HostType = iota
	HOST_TYPE_BHD
)

var hostTypeNameMap = map[HostType]string{
	HOST_TYPE_SIM: "sim",
	HOST_TYPE_BHD: "bhd",
}

func HostTypeToString(ht HostType) string {
	return hostTypeNameMap[ht]
}

func HostTypeFromString(s string) (HostType, error) {
	for k, v := range hostTypeNameMap {
		if s == v {
			return k, nil
		}
	}

	return HostType(0), util.FmtNewtError("Invalid host type: \"%s\"", s)
}

func einvalConnString(kind string, f string, args ...interface{}) error {
	suffix := fmt.Sprintf(f, args...)
	return util.FmtNewtError("Invalid %s connstring; %s", kind, suffix)
}

// Splits a connstring into key=value pairs.  A key without a value maps to
// "true".
func splitConnString(kind string, cs string) (map[string]string, error) {
	m := map[string]string{}
	if cs == "" {
		return m, nil
	}

	for _, p := range strings.Split(cs, ",") {
		kv := strings.SplitN(p, "=", 2)
		k := strings.TrimSpace(kv[0])
		if k == "" {
			return nil, einvalConnString(kind, "empty key in: %s", cs)
		}

		if len(kv) == 1 {
			m[k] = "true"
		} else {
			m[k] = kv[1]
		}
	}

	return m, nil
}

func parseAddr(kind string, key string, v string) (*bledefs.BleAddr, error) {
	if v == "none" {
		return nil, nil
	}

	addr, err := bledefs.ParseBleAddr(v)
	if err != nil {
		return nil, einvalConnString(kind, "Invalid %s; %s", key, err.Error())
	}
	return &addr, nil
}

// Keys: public_addr, rand_addr (an address or "none"), gen_rand,
// sync_delay.
func ParseSimConnString(cs string) (sim.HostCfg, error) {
	const kind = "sim"

	hc := sim.NewHostCfg()

	m, err := splitConnString(kind, cs)
	if err != nil {
		return hc, err
	}

	for k, v := range m {
		switch k {
		case "public_addr":
			hc.PublicAddr, err = parseAddr(kind, k, v)
			if err != nil {
				return hc, err
			}

		case "rand_addr":
			hc.RandAddr, err = parseAddr(kind, k, v)
			if err != nil {
				return hc, err
			}

		case "gen_rand":
			hc.CanGenRand, err = cast.ToBoolE(v)
			if err != nil {
				return hc, einvalConnString(kind, "Invalid gen_rand: %s", v)
			}

		case "sync_delay":
			hc.SyncDelay, err = cast.ToDurationE(v)
			if err != nil || hc.SyncDelay < 0 {
				return hc, einvalConnString(kind, "Invalid sync_delay: %s", v)
			}

		default:
			return hc, einvalConnString(kind, "Unrecognized key: %s", k)
		}
	}

	return hc, nil
}

// Keys: bhd_path, ctlr_path, sock_path, rsp_tmo, accept_tmo, sync_tmo.
func ParseBhdConnString(cs string) (bhd.XportCfg, error) {
	const kind = "bhd"

	xc := bhd.NewXportCfg()
	xc.SockPath = "/tmp/blehostd-uds"

	m, err := splitConnString(kind, cs)
	if err != nil {
		return xc, err
	}

	for k, v := range m {
		switch k {
		case "bhd_path":
			xc.BlehostdPath = v
		case "ctlr_path":
			xc.DevPath = v
		case "sock_path":
			xc.SockPath = v

		case "rsp_tmo":
			xc.BlehostdRspTimeout, err = cast.ToDurationE(v)
			if err != nil || xc.BlehostdRspTimeout <= 0 {
				return xc, einvalConnString(kind, "Invalid rsp_tmo: %s", v)
			}
		case "accept_tmo":
			xc.BlehostdAcceptTimeout, err = cast.ToDurationE(v)
			if err != nil || xc.BlehostdAcceptTimeout <= 0 {
				return xc, einvalConnString(kind, "Invalid accept_tmo: %s", v)
			}
		case "sync_tmo":
			xc.SyncTimeout, err = cast.ToDurationE(v)
			if err != nil || xc.SyncTimeout <= 0 {
				return xc, einvalConnString(kind, "Invalid sync_tmo: %s", v)
			}

		default:
			return xc, einvalConnString(kind, "Unrecognized key: %s", k)
		}
	}

	if xc.BlehostdPath == "" {
		return xc, einvalConnString(kind, "bhd_path not specified")
	}
	if xc.DevPath == "" {
		return xc, einvalConnString(kind, "ctlr_path not specified")
	}

	return xc, nil
}

// BuildHost creates the BLE host described by the configuration's host
// section.  The host is not started.
func (c *Config) BuildHost() (hs.Host, error) {
	ht, err := HostTypeFromString(c.Host.Type)
	if err != nil {
		return nil, err
	}

	switch ht {
	case HOST_TYPE_BHD:
		xc, err := ParseBhdConnString(c.Host.ConnString)
		if err != nil {
			return nil, err
		}
		return bhd.NewHost(xc), nil

	default:
		hc, err := ParseSimConnString(c.Host.ConnString)
		if err != nil {
			return nil, err
		}
		return sim.NewHost(hc), nil
	}
}
