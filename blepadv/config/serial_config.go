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
	"strings"

	"github.com/spf13/cast"

	"mynewt.apache.org/blepadv/blepadv/console"
)

// Keys: dev, baud, read_tmo.  A lone token is taken as the device path.
func ParseSerialConnString(cs string) (console.Cfg, error) {
	const kind = "serial"

	sc := console.NewCfg()

	parts := strings.Split(cs, ",")
	for _, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		// Handle old-style conn string (single token indicating dev file).
		if len(kv) == 1 {
			kv = []string{"dev", kv[0]}
		}

		k := kv[0]
		v := kv[1]

		var err error
		switch k {
		case "dev":
			sc.DevPath = v

		case "baud":
			sc.Baud, err = cast.ToIntE(v)
			if err != nil || sc.Baud <= 0 {
				return sc, einvalConnString(kind, "Invalid baud: %s", v)
			}

		case "read_tmo":
			sc.ReadTimeout, err = cast.ToDurationE(v)
			if err != nil || sc.ReadTimeout <= 0 {
				return sc, einvalConnString(kind, "Invalid read_tmo: %s", v)
			}

		default:
			return sc, einvalConnString(kind, "Unrecognized key: %s", k)
		}
	}

	if sc.DevPath == "" {
		return sc, einvalConnString(kind, "dev not specified")
	}

	return sc, nil
}

func (c *Config) ConsoleCfg() (console.Cfg, error) {
	return ParseSerialConnString(c.Console.ConnString)
}
