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

// Package evq implements the host event queue.  Host adapters post lifecycle
// and GAP callbacks to the queue; a single goroutine drains it, so callbacks
// never run concurrently with one another.
package evq

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// A single event that runs in the event loop.
type event struct {
	name string
	fn   func() error
	ch   chan error
}

type EventQ struct {
	evCh    chan event
	name    string
	mtx     sync.Mutex
	running bool
	stopped bool
}

var InactiveError = fmt.Errorf("inactive event queue")

func NewEventQ(name string, depth int) *EventQ {
	return &EventQ{
		evCh: make(chan event, depth),
		name: name,
	}
}

func (q *EventQ) Name() string {
	return q.name
}

// Enqueue pushes the specified function onto the event queue.  When the
// event has been processed, the result is sent over the returned channel.
// Events may be posted before the loop starts running; they are processed
// once it does.
func (q *EventQ) Enqueue(name string, fn func() error) chan error {
	ev := event{
		name: name,
		fn:   fn,
		ch:   make(chan error, 1),
	}

	q.mtx.Lock()
	defer q.mtx.Unlock()

	if q.stopped {
		ev.ch <- InactiveError
		close(ev.ch)
		return ev.ch
	}

	select {
	case q.evCh <- ev:
	default:
		ev.ch <- fmt.Errorf("event queue \"%s\" full; dropping %s",
			q.name, name)
		close(ev.ch)
	}

	return ev.ch
}

// Post enqueues a callback whose result is not of interest.
func (q *EventQ) Post(name string, fn func()) error {
	ch := q.Enqueue(name, func() error {
		fn()
		return nil
	})

	// Immediate failures are already in the channel.
	select {
	case err := <-ch:
		return err
	default:
		return nil
	}
}

// Call enqueues the specified function and waits for it to complete.
func (q *EventQ) Call(ctx context.Context, name string,
	fn func() error) error {

	ch := q.Enqueue(name, fn)
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events on the calling goroutine until the context is done.
// Once Run returns, the queue is inactive: queued events fail with the
// context's error and later posts fail with InactiveError.
func (q *EventQ) Run(ctx context.Context) error {
	q.mtx.Lock()
	if q.running {
		q.mtx.Unlock()
		return fmt.Errorf("event queue run twice \"%s\"", q.name)
	}
	if q.stopped {
		q.mtx.Unlock()
		return InactiveError
	}
	q.running = true
	q.mtx.Unlock()

	for {
		select {
		case ev := <-q.evCh:
			log.Debugf("evq %s: %s", q.name, ev.name)
			ev.ch <- ev.fn()
			close(ev.ch)

		case <-ctx.Done():
			q.stop(ctx.Err())
			return ctx.Err()
		}
	}
}

func (q *EventQ) stop(cause error) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	q.stopped = true
	q.running = false

	// Drain unprocessed events.
	for {
		select {
		case ev := <-q.evCh:
			ev.ch <- cause
			close(ev.ch)
		default:
			return
		}
	}
}

func (q *EventQ) Active() bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	return !q.stopped
}
