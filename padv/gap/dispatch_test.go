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
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher() (*Dispatcher, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	return &Dispatcher{Logger: logger}, hook
}

func TestFromRaw(t *testing.T) {
	tests := []struct {
		name string
		raw  RawEvent
		want Event
	}{
		{
			name: "adv complete",
			raw:  RawEvent{Type: 9, Instance: 0, Reason: 13},
			want: AdvCompleteEvent{Instance: 0, Reason: 13},
		},
		{
			name: "known code without variant",
			raw:  RawEvent{Type: int(EVENT_CONNECT)},
			want: OtherEvent{Code: EVENT_CONNECT},
		},
		{
			name: "unknown code",
			raw:  RawEvent{Type: 99, Instance: 3, Reason: 1},
			want: OtherEvent{Code: 99},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromRaw(tt.raw))
		})
	}
}

func TestAdvCompleteIsReported(t *testing.T) {
	d, hook := newTestDispatcher()

	res := d.OnGapEvent(AdvCompleteEvent{Instance: 0, Reason: 13})

	assert.Equal(t, Handled, res)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "Adv. complete, instance 0 reason 13",
		hook.LastEntry().Message)
}

func TestUnknownEventIsReportedAsUnhandled(t *testing.T) {
	d, hook := newTestDispatcher()

	res := d.OnGapEvent(OtherEvent{Code: 99})

	assert.Equal(t, Handled, res)
	require.Len(t, hook.AllEntries(), 1)
	assert.Contains(t, hook.LastEntry().Message, "Event 99 not handled")
}

func TestCallbackAlwaysReturnsZero(t *testing.T) {
	d, hook := newTestDispatcher()
	cb := Callback(d)

	for code := -1; code < 64; code++ {
		assert.Equal(t, 0, cb(RawEvent{Type: code, Reason: code}))
	}
	assert.Len(t, hook.AllEntries(), 65)
}
