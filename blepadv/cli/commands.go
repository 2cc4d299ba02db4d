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
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mynewt.apache.org/newt/util"

	"mynewt.apache.org/blepadv/blepadv/bputil"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

var BlepadvLogLevel log.Level

func bpUsage(cmd *cobra.Command, err error) {
	if err != nil {
		sErr := util.ChildNewtError(err)
		log.Debugf("%s", sErr.StackTrace)
		fmt.Fprintf(os.Stderr, "Error: %s\n", sErr.Text)
	}

	if cmd != nil {
		fmt.Printf("\n")
		fmt.Printf("%s - ", cmd.Name())
		cmd.Help()
	}

	os.Exit(1)
}

func Commands() *cobra.Command {
	logLevelStr := ""
	bpCmd := &cobra.Command{
		Use: bputil.ToolInfo.ExeName,
		Short: bputil.ToolInfo.ShortName +
			" configures and runs a BLE periodic advertiser",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			BlepadvLogLevel, err = log.ParseLevel(logLevelStr)
			if err != nil {
				bpUsage(nil, util.ChildNewtError(err))
			}

			err = util.Init(BlepadvLogLevel, "", util.VERBOSITY_DEFAULT)
			if err != nil {
				bpUsage(nil, err)
			}
			padvutil.SetLogLevel(BlepadvLogLevel)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	bpCmd.PersistentFlags().StringVarP(&logLevelStr, "loglevel", "l", "info",
		"log level to use")

	bpCmd.PersistentFlags().StringVar(&bputil.CfgPath, "config", "",
		"configuration file to use instead of ~/"+
			bputil.ToolInfo.CfgFilename)

	versCmd := &cobra.Command{
		Use:     "version",
		Short:   "Display the " + bputil.ToolInfo.ShortName + " version number",
		Example: "  " + bputil.ToolInfo.ExeName + " version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n",
				bputil.ToolInfo.LongName,
				bputil.ToolInfo.VersionString)
		},
	}
	bpCmd.AddCommand(versCmd)

	bpCmd.AddCommand(runCmd())
	bpCmd.AddCommand(shellCmd())
	bpCmd.AddCommand(consoleCmd())
	bpCmd.AddCommand(configCmd())

	return bpCmd
}
