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

package cli

import (
	"context"
	"encoding/hex"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mynewt.apache.org/newt/util"

	"mynewt.apache.org/blepadv/blepadv/bputil"
	"mynewt.apache.org/blepadv/blepadv/console"
)

func consoleCmd() *cobra.Command {
	var connString string
	var untilStarted bool

	consoleCmd := &cobra.Command{
		Use:   "console",
		Short: "Follow the console output of a device running the advertiser",
		Example: "  " + bputil.ToolInfo.ExeName + " console\n" +
			"  " + bputil.ToolInfo.ExeName + " console " +
			"--connstring dev=/dev/ttyUSB0,baud=115200 --until-started",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			if connString != "" {
				cfg.Console.ConnString = connString
			}

			sc, err := cfg.ConsoleCfg()
			if err != nil {
				bpUsage(cmd, err)
			}

			started := false
			fn := func(line console.Line) bool {
				switch line.Kind {
				case console.LINE_KIND_MGMT:
					log.Debugf("mgmt frame (%d bytes):\n%s",
						len(line.Frame), hex.Dump(line.Frame))

				default:
					log.Infof("%s", line.Text)
					if inst, ok := console.StartedInstance(line.Text); ok {
						log.Debugf("device started instance %d", inst)
						if untilStarted {
							started = true
							return false
						}
					}
				}
				return true
			}

			ctx, done := runContext()
			defer done()

			err = console.Tail(ctx, sc, fn)
			if err != nil && !bputil.ErrorCausedBy(err, context.Canceled) {
				bpUsage(nil, util.ChildNewtError(err))
			}
			if untilStarted && !started && ctx.Err() == nil {
				bpUsage(nil, util.NewNewtError(
					"console closed before advertising started"))
			}
		},
	}

	consoleCmd.Flags().StringVar(&connString, "connstring", "",
		"serial connection string to use instead of the configured one")
	consoleCmd.Flags().BoolVar(&untilStarted, "until-started", false,
		"exit once the device reports periodic advertising has started")

	return consoleCmd
}
