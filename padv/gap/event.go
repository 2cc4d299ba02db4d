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
	"fmt"
)

type EventType int

// GAP event codes, as numbered by the NimBLE host.
const (
	EVENT_CONNECT             EventType = 0
	EVENT_DISCONNECT          EventType = 1
	EVENT_CONN_UPDATE         EventType = 3
	EVENT_CONN_UPDATE_REQ     EventType = 4
	EVENT_L2CAP_UPDATE_REQ    EventType = 5
	EVENT_TERM_FAILURE        EventType = 6
	EVENT_DISC                EventType = 7
	EVENT_DISC_COMPLETE       EventType = 8
	EVENT_ADV_COMPLETE        EventType = 9
	EVENT_ENC_CHANGE          EventType = 10
	EVENT_PASSKEY_ACTION      EventType = 11
	EVENT_NOTIFY_RX           EventType = 12
	EVENT_NOTIFY_TX           EventType = 13
	EVENT_SUBSCRIBE           EventType = 14
	EVENT_MTU                 EventType = 15
	EVENT_IDENTITY_RESOLVED   EventType = 16
	EVENT_REPEAT_PAIRING      EventType = 17
	EVENT_PHY_UPDATE_COMPLETE EventType = 18
	EVENT_EXT_DISC            EventType = 19
	EVENT_PERIODIC_SYNC       EventType = 20
	EVENT_PERIODIC_REPORT     EventType = 21
	EVENT_PERIODIC_SYNC_LOST  EventType = 22
	EVENT_SCAN_REQ_RCVD       EventType = 23
	EVENT_PERIODIC_TRANSFER   EventType = 24
)

var EventTypeStringMap = map[EventType]string{
	EVENT_CONNECT:             "connect",
	EVENT_DISCONNECT:          "disconnect",
	EVENT_CONN_UPDATE:         "conn_update",
	EVENT_CONN_UPDATE_REQ:     "conn_update_req",
	EVENT_L2CAP_UPDATE_REQ:    "l2cap_update_req",
	EVENT_TERM_FAILURE:        "term_failure",
	EVENT_DISC:                "disc",
	EVENT_DISC_COMPLETE:       "disc_complete",
	EVENT_ADV_COMPLETE:        "adv_complete",
	EVENT_ENC_CHANGE:          "enc_change",
	EVENT_PASSKEY_ACTION:      "passkey_action",
	EVENT_NOTIFY_RX:           "notify_rx",
	EVENT_NOTIFY_TX:           "notify_tx",
	EVENT_SUBSCRIBE:           "subscribe",
	EVENT_MTU:                 "mtu",
	EVENT_IDENTITY_RESOLVED:   "identity_resolved",
	EVENT_REPEAT_PAIRING:      "repeat_pairing",
	EVENT_PHY_UPDATE_COMPLETE: "phy_update_complete",
	EVENT_EXT_DISC:            "ext_disc",
	EVENT_PERIODIC_SYNC:       "periodic_sync",
	EVENT_PERIODIC_REPORT:     "periodic_report",
	EVENT_PERIODIC_SYNC_LOST:  "periodic_sync_lost",
	EVENT_SCAN_REQ_RCVD:       "scan_req_rcvd",
	EVENT_PERIODIC_TRANSFER:   "periodic_transfer",
}

func EventTypeToString(t EventType) string {
	s := EventTypeStringMap[t]
	if s == "" {
		return "???"
	}

	return s
}

func (t EventType) String() string {
	return EventTypeToString(t)
}

// Event is a notification raised by the host stack.  The set of variants is
// closed: AdvCompleteEvent and OtherEvent.
type Event interface {
	Type() EventType
	isEvent()
}

// The advertising instance stopped.
type AdvCompleteEvent struct {
	Instance uint8
	Reason   int
}

func (e AdvCompleteEvent) Type() EventType {
	return EVENT_ADV_COMPLETE
}

func (e AdvCompleteEvent) isEvent() {}

func (e AdvCompleteEvent) String() string {
	return fmt.Sprintf("adv_complete instance=%d reason=%d",
		e.Instance, e.Reason)
}

// Any event without a dedicated variant.
type OtherEvent struct {
	Code EventType
}

func (e OtherEvent) Type() EventType {
	return e.Code
}

func (e OtherEvent) isEvent() {}

func (e OtherEvent) String() string {
	return fmt.Sprintf("%s (%d)", EventTypeToString(e.Code), int(e.Code))
}

// RawEvent is the untyped form in which host adapters receive GAP events.
type RawEvent struct {
	Type     int
	Instance uint8
	Reason   int
}

// FromRaw converts a host event to its variant.  Codes without a dedicated
// variant, including codes unknown to this package, become OtherEvent.
func FromRaw(raw RawEvent) Event {
	switch EventType(raw.Type) {
	case EVENT_ADV_COMPLETE:
		return AdvCompleteEvent{
			Instance: raw.Instance,
			Reason:   raw.Reason,
		}

	default:
		return OtherEvent{Code: EventType(raw.Type)}
	}
}
