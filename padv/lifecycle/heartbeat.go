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

package lifecycle

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Heartbeat keeps a task alive once its work is done, waking up once per
// interval.
type Heartbeat struct {
	Interval time.Duration

	// Optional; called after every interval with the number of beats so far.
	OnBeat func(n uint64)
}

// Run beats until the context is done and returns the context's error.
func (hb *Heartbeat) Run(ctx context.Context) error {
	if hb.Interval <= 0 {
		return fmt.Errorf("invalid heartbeat interval: %s", hb.Interval)
	}

	ticker := time.NewTicker(hb.Interval)
	defer ticker.Stop()

	var n uint64
	for {
		select {
		case <-ticker.C:
			n++
			log.Debugf("heartbeat %d", n)
			if hb.OnBeat != nil {
				hb.OnBeat(n)
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
