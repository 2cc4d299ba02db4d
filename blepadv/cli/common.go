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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/blepadv/blepadv/bputil"
	"mynewt.apache.org/blepadv/blepadv/config"
)

var runMtx sync.Mutex
var runCancel context.CancelFunc
var runDone chan struct{}

// Creates the context a long-running command runs under.  The returned
// function must be called when the command finishes.
func runContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	runMtx.Lock()
	runCancel = cancel
	runDone = done
	runMtx.Unlock()

	return ctx, func() {
		cancel()

		runMtx.Lock()
		if runDone == done {
			runCancel = nil
			runDone = nil
		}
		runMtx.Unlock()

		close(done)
	}
}

// StopRun cancels the running command, if any, and waits up to timeout for
// it to wind down.
func StopRun(timeout time.Duration) {
	runMtx.Lock()
	cancel := runCancel
	done := runDone
	runMtx.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Debugf("timeout waiting for command to stop")
	}
}

// Loads the configuration and applies command line overrides.
func loadConfig() *config.Config {
	cfg, err := config.Load(bputil.CfgPath)
	if err != nil {
		bpUsage(nil, err)
	}

	if bputil.HostType != "" {
		cfg.Host.Type = bputil.HostType
		if bputil.HostConnString == "" {
			cfg.Host.ConnString = ""
		}
	}
	if bputil.HostConnString != "" {
		cfg.Host.ConnString = bputil.HostConnString
	}

	if err := cfg.Validate(); err != nil {
		bpUsage(nil, err)
	}

	return cfg
}
