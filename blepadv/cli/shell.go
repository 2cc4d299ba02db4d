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
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/abiosoft/ishell.v2"

	"mynewt.apache.org/newt/util"

	"mynewt.apache.org/blepadv/blepadv/bputil"
	"mynewt.apache.org/blepadv/blepadv/config"
	"mynewt.apache.org/blepadv/padv/gap"
	"mynewt.apache.org/blepadv/padv/lifecycle"
	"mynewt.apache.org/blepadv/padv/sim"
)

func parseIntArgs(c *ishell.Context, cmd string,
	names ...string) ([]int, bool) {

	if len(c.Args) != len(names) {
		c.Printf("usage: %s", cmd)
		for _, n := range names {
			c.Printf(" <%s>", n)
		}
		c.Println()
		return nil, false
	}

	vals := make([]int, len(names))
	for i, a := range c.Args {
		v, err := strconv.ParseInt(a, 0, 32)
		if err != nil {
			c.Printf("invalid %s: %s\n", names[i], a)
			return nil, false
		}
		vals[i] = int(v)
	}

	return vals, true
}

func printErr(c *ishell.Context, err error) {
	if err != nil {
		c.Println("error:", err.Error())
	}
}

func addShellCmds(shell *ishell.Shell, host *sim.Host, app *lifecycle.App) {
	shell.AddCmd(&ishell.Cmd{
		Name: "sync",
		Help: "report the host as synchronized with the controller",
		Func: func(c *ishell.Context) {
			printErr(c, host.Sync())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "reset",
		Help: "report a host stack reset: reset <reason>",
		Func: func(c *ishell.Context) {
			if vals, ok := parseIntArgs(c, "reset", "reason"); ok {
				printErr(c, host.Reset(vals[0]))
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "adv-complete",
		Help: "raise an advertising complete event: " +
			"adv-complete <instance> <reason>",
		Func: func(c *ishell.Context) {
			vals, ok := parseIntArgs(c, "adv-complete", "instance", "reason")
			if !ok {
				return
			}
			printErr(c, host.RaiseGap(gap.RawEvent{
				Type:     int(gap.EVENT_ADV_COMPLETE),
				Instance: uint8(vals[0]),
				Reason:   vals[1],
			}))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "event",
		Help: "raise an arbitrary GAP event for instance 0: event <type>",
		Func: func(c *ishell.Context) {
			if vals, ok := parseIntArgs(c, "event", "type"); ok {
				printErr(c, host.RaiseGap(gap.RawEvent{Type: vals[0]}))
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "state",
		Help: "show the advertiser state",
		Func: func(c *ishell.Context) {
			ctl := app.Controller()

			c.Printf("host synced:  %v\n", host.Synced())
			c.Printf("identity:     %s\n", ctl.Identity().String())
			c.Printf("resets:       %d\n", ctl.Resets())
			c.Printf("instance:     %s\n", app.Instance().String())
			if w := ctl.Worker(); w != nil {
				c.Printf("worker:       %s\n", w.State())
				if err := w.Err(); err != nil {
					c.Printf("worker error: %s\n", err.Error())
				}
			} else {
				c.Printf("worker:       not started\n")
			}

			periodic, ext := host.Advertising(app.Instance().Id)
			c.Printf("periodic adv: %v\n", periodic)
			c.Printf("ext adv:      %v\n", ext)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "release",
		Help: "let the worker configure without waiting out its startup delay",
		Func: func(c *ishell.Context) {
			app.Controller().ReleaseStartupWait()
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "wait",
		Help: "wait for advertising to start: wait [seconds]",
		Func: func(c *ishell.Context) {
			tmo := 5 * time.Second
			if len(c.Args) > 0 {
				secs, err := strconv.Atoi(c.Args[0])
				if err != nil || secs <= 0 {
					c.Println("invalid timeout:", c.Args[0])
					return
				}
				tmo = time.Duration(secs) * time.Second
			}

			err := app.Controller().WaitAdvertising(context.Background(), tmo)
			if err != nil {
				printErr(c, err)
				return
			}
			c.Println("advertising")
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "calls",
		Help: "list the host calls made so far",
		Func: func(c *ishell.Context) {
			for i, call := range host.Calls() {
				c.Printf("%2d %s\n", i, call.String())
			}
		},
	})
}

func runShellCmd(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	cs := bputil.HostConnString
	if cs == "" &&
		cfg.Host.Type == config.HostTypeToString(config.HOST_TYPE_SIM) {

		cs = cfg.Host.ConnString
	}
	hostCfg, err := config.ParseSimConnString(cs)
	if err != nil {
		bpUsage(nil, err)
	}
	hostCfg.AutoSync = false
	host := sim.NewHost(hostCfg)

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

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Run(ctx)
	}()

	shell := ishell.New()
	shell.SetPrompt("blepadv> ")
	shell.Println("Simulated host; type 'sync' to start advertising.")
	addShellCmds(shell, host, app)

	shell.Run()
	shell.Close()

	StopRun(5 * time.Second)
	select {
	case err := <-errChan:
		if err != nil {
			fmt.Printf("advertiser stopped: %s\n", err.Error())
		}
	case <-time.After(time.Second):
	}
}

func shellCmd() *cobra.Command {
	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Drive the advertiser against a simulated host interactively",
		Example: "  " + bputil.ToolInfo.ExeName + " shell\n" +
			"  " + bputil.ToolInfo.ExeName + " shell " +
			"--connstring public_addr=none",
		Run: runShellCmd,
	}

	shellCmd.Flags().StringVar(&bputil.HostConnString, "connstring", "",
		"simulated host connection string")

	return shellCmd
}
