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

package gap

import (
	log "github.com/sirupsen/logrus"
)

// Result is the status handed back to the host for a GAP event.
type Result int

const Handled Result = 0

type Handler interface {
	OnGapEvent(ev Event) Result
}

// EventFn is the callback signature host adapters invoke for each GAP event.
type EventFn func(raw RawEvent) int

// Callback adapts a Handler to the host boundary.
func Callback(h Handler) EventFn {
	return func(raw RawEvent) int {
		return int(h.OnGapEvent(FromRaw(raw)))
	}
}

// Dispatcher reports advertising events.  It never mutates advertiser state.
type Dispatcher struct {
	Logger log.FieldLogger
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		Logger: log.StandardLogger(),
	}
}

func (d *Dispatcher) OnGapEvent(ev Event) Result {
	switch e := ev.(type) {
	case AdvCompleteEvent:
		d.Logger.Infof("Adv. complete, instance %d reason %d",
			e.Instance, e.Reason)

	case OtherEvent:
		d.Logger.Infof("Event %d not handled (%s)",
			int(e.Code), EventTypeToString(e.Code))

	default:
		d.Logger.Infof("Event %d not handled", int(ev.Type()))
	}

	return Handled
}
