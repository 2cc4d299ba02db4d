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

package bhd

import (
	"fmt"
)

// ListenerKey selects the messages a listener receives: the response to one
// request, or every event of one type.
type ListenerKey struct {
	Seq  BleSeq
	Type MsgType
}

func SeqKey(seq BleSeq) ListenerKey {
	return ListenerKey{
		Seq:  seq,
		Type: -1,
	}
}

func TypeKey(typ MsgType) ListenerKey {
	return ListenerKey{
		Seq:  BLE_SEQ_NONE,
		Type: typ,
	}
}

func (k ListenerKey) String() string {
	if k.Seq != BLE_SEQ_NONE {
		return fmt.Sprintf("seq=%d", k.Seq)
	}
	return fmt.Sprintf("type=%s", MsgTypeToString(k.Type))
}

// Listener receives the messages routed to its key.  ErrChan reports the
// transport going away; nothing more arrives after it fires.
type Listener struct {
	Key     ListenerKey
	MsgChan chan Msg
	ErrChan chan error
}

func NewListener(key ListenerKey) *Listener {
	return &Listener{
		Key:     key,
		MsgChan: make(chan Msg, 16),
		ErrChan: make(chan error, 1),
	}
}

// Registered listeners by key.  Not thread safe.
type listenerTable map[ListenerKey]*Listener

// A response goes to the listener waiting on its sequence number; anything
// else goes to the listener for its type.
func (lt listenerTable) find(seq BleSeq, typ MsgType) *Listener {
	if l := lt[SeqKey(seq)]; l != nil {
		return l
	}
	return lt[TypeKey(typ)]
}

func (lt listenerTable) add(l *Listener) error {
	if _, ok := lt[l.Key]; ok {
		return fmt.Errorf("Duplicate blehostd listener: %s", l.Key)
	}

	lt[l.Key] = l
	return nil
}

// Returns false if l was not registered.
func (lt listenerTable) remove(l *Listener) bool {
	if lt[l.Key] != l {
		return false
	}

	delete(lt, l.Key)
	return true
}

// Unregisters every listener and returns them.
func (lt listenerTable) drain() []*Listener {
	ls := make([]*Listener, 0, len(lt))
	for k, l := range lt {
		ls = append(ls, l)
		delete(lt, k)
	}

	return ls
}
