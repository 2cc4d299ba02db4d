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

package evq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsRunInPostOrder(t *testing.T) {
	q := NewEventQ("test", 8)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		require.NoError(t, q.Post("ev", func() { order = append(order, i) }))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- q.Run(ctx) }()

	require.NoError(t, q.Call(ctx, "sync", func() error { return nil }))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestCallReturnsEventError(t *testing.T) {
	q := NewEventQ("test", 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	boom := errors.New("boom")
	assert.Equal(t, boom, q.Call(ctx, "fail", func() error { return boom }))
}

func TestStoppedQueueRejectsEvents(t *testing.T) {
	q := NewEventQ("test", 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- q.Run(ctx) }()
	cancel()
	<-done

	assert.False(t, q.Active())
	assert.Equal(t, InactiveError, q.Post("late", func() {}))
	assert.Equal(t, InactiveError, q.Run(context.Background()))
}

func TestFullQueueDropsEvent(t *testing.T) {
	q := NewEventQ("test", 1)

	require.NoError(t, q.Post("first", func() {}))
	assert.Error(t, q.Post("second", func() {}))
}

func TestCallHonoursContext(t *testing.T) {
	q := NewEventQ("test", 1)

	ctx, cancel := context.WithTimeout(context.Background(),
		10*time.Millisecond)
	defer cancel()

	// Nothing runs the queue, so the call can only end via the context.
	err := q.Call(ctx, "stuck", func() error { return nil })
	assert.Equal(t, context.DeadlineExceeded, err)
}
