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

	"github.com/spf13/cobra"

	"mynewt.apache.org/newt/util"

	"mynewt.apache.org/blepadv/blepadv/bputil"
	"mynewt.apache.org/blepadv/padv/lifecycle"
)

func runRunCmd(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	host, err := cfg.BuildHost()
	if err != nil {
		bpUsage(nil, err)
	}

	appCfg, err := cfg.AppCfg()
	if err != nil {
		bpUsage(nil, err)
	}

	app, err := lifecycle.NewApp(host, appCfg)
	if err != nil {
		bpUsage(nil, util.ChildNewtError(err))
	}

	ctx, done := runContext()
	defer done()

	err = app.Run(ctx)
	if err != nil && !bputil.ErrorCausedBy(err, context.Canceled) {
		bpUsage(nil, util.ChildNewtError(err))
	}
}

func runCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start periodic advertising and run until interrupted",
		Example: "  " + bputil.ToolInfo.ExeName + " run\n" +
			"  " + bputil.ToolInfo.ExeName + " run --host bhd " +
			"--connstring bhd_path=/usr/local/bin/blehostd," +
			"ctlr_path=/dev/cu.usbmodem14221",
		Run: runRunCmd,
	}

	runCmd.Flags().StringVar(&bputil.HostType, "host", "",
		"host type to use instead of the configured one (sim|bhd)")
	runCmd.Flags().StringVar(&bputil.HostConnString, "connstring", "",
		"host connection string to use instead of the configured one")

	return runCmd
}
