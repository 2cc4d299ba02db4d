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

package padvutil

import (
	"context"
	"time"
)

// Sem is a counting semaphore with a bounded wait.
type Sem struct {
	tokens chan struct{}
}

// NewSem creates a semaphore holding `initial` tokens.  The semaphore never
// holds more than `max` tokens; releases beyond that are dropped.
func NewSem(initial int, max int) *Sem {
	if max < 1 {
		max = 1
	}
	if initial > max {
		initial = max
	}

	s := &Sem{
		tokens: make(chan struct{}, max),
	}
	for i := 0; i < initial; i++ {
		s.tokens <- struct{}{}
	}

	return s
}

// Pend takes one token.  It returns a *TimeoutError if no token becomes
// available within the timeout, or the context's error if the context ends
// first.
func (s *Sem) Pend(ctx context.Context, timeout time.Duration) error {
	select {
	case <-s.tokens:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer StopAndDrainTimer(timer)

	select {
	case <-s.tokens:
		return nil
	case <-timer.C:
		return FmtTimeoutError("semaphore pend timed out after %s",
			timeout.String())
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns one token to the semaphore.
func (s *Sem) Release() {
	select {
	case s.tokens <- struct{}{}:
	default:
	}
}

func (s *Sem) Tokens() int {
	return len(s.tokens)
}
