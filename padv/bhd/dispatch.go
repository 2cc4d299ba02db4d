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
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

type OpTypePair struct {
	Op   MsgOp
	Type MsgType
}

type msgCtor func() Msg

func errRspCtor() Msg                  { return &BleErrRsp{} }
func syncRspCtor() Msg                 { return &BleSyncRsp{} }
func resetRspCtor() Msg                { return &BleResetRsp{} }
func copyAddrRspCtor() Msg             { return &BleCopyAddrRsp{} }
func genRandAddrRspCtor() Msg          { return &BleGenRandAddrRsp{} }
func setRandAddrRspCtor() Msg          { return &BleSetRandAddrRsp{} }
func extAdvConfigureRspCtor() Msg      { return &BleExtAdvConfigureRsp{} }
func extAdvSetDataRspCtor() Msg        { return &BleExtAdvSetDataRsp{} }
func periodicAdvConfigureRspCtor() Msg { return &BlePeriodicAdvConfigureRsp{} }
func periodicAdvStartRspCtor() Msg     { return &BlePeriodicAdvStartRsp{} }
func extAdvStartRspCtor() Msg          { return &BleExtAdvStartRsp{} }

func syncEvtCtor() Msg  { return &BleSyncEvt{} }
func resetEvtCtor() Msg { return &BleResetEvt{} }
func gapEvtCtor() Msg   { return &BleGapEvt{} }

var msgCtorMap = map[OpTypePair]msgCtor{
	{MSG_OP_RSP, MSG_TYPE_ERR}:                    errRspCtor,
	{MSG_OP_RSP, MSG_TYPE_SYNC}:                   syncRspCtor,
	{MSG_OP_RSP, MSG_TYPE_RESET}:                  resetRspCtor,
	{MSG_OP_RSP, MSG_TYPE_COPY_ADDR}:              copyAddrRspCtor,
	{MSG_OP_RSP, MSG_TYPE_GEN_RAND_ADDR}:          genRandAddrRspCtor,
	{MSG_OP_RSP, MSG_TYPE_SET_RAND_ADDR}:          setRandAddrRspCtor,
	{MSG_OP_RSP, MSG_TYPE_EXT_ADV_CONFIGURE}:      extAdvConfigureRspCtor,
	{MSG_OP_RSP, MSG_TYPE_EXT_ADV_SET_DATA}:       extAdvSetDataRspCtor,
	{MSG_OP_RSP, MSG_TYPE_PERIODIC_ADV_CONFIGURE}: periodicAdvConfigureRspCtor,
	{MSG_OP_RSP, MSG_TYPE_PERIODIC_ADV_START}:     periodicAdvStartRspCtor,
	{MSG_OP_RSP, MSG_TYPE_EXT_ADV_START}:          extAdvStartRspCtor,

	{MSG_OP_EVT, MSG_TYPE_SYNC_EVT}:  syncEvtCtor,
	{MSG_OP_EVT, MSG_TYPE_RESET_EVT}: resetEvtCtor,
	{MSG_OP_EVT, MSG_TYPE_GAP_EVT}:   gapEvtCtor,
}

// Dispatcher routes messages received from blehostd to the listener that
// is waiting for them.
type Dispatcher struct {
	lt  listenerTable
	mtx sync.Mutex
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		lt: listenerTable{},
	}
}

func (d *Dispatcher) AddListener(listener *Listener) error {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.lt.add(listener)
}

func (d *Dispatcher) RemoveListener(listener *Listener) bool {
	d.mtx.Lock()
	defer d.mtx.Unlock()

	return d.lt.remove(listener)
}

func decodeBleBase(data []byte) (BleMsgBase, error) {
	base := BleMsgBase{}
	if err := json.Unmarshal(data, &base); err != nil {
		return base, err
	}

	return base, nil
}

func decodeBleMsg(data []byte) (BleMsgBase, Msg, error) {
	base, err := decodeBleBase(data)
	if err != nil {
		return base, nil, err
	}

	opTypePair := OpTypePair{base.Op, base.Type}
	cb := msgCtorMap[opTypePair]
	if cb == nil {
		return base, nil, fmt.Errorf(
			"Unrecognized op+type pair: %s, %s",
			MsgOpToString(base.Op), MsgTypeToString(base.Type))
	}

	msg := cb()
	if err := json.Unmarshal(data, msg); err != nil {
		return base, nil, err
	}

	return base, msg, nil
}

// Dispatch decodes a single JSON message and hands it to the matching
// listener.  Undecodable and unclaimed messages are logged and dropped.
func (d *Dispatcher) Dispatch(data []byte) {
	base, msg, err := decodeBleMsg(data)
	if err != nil {
		log.Warnf("BLE dispatch error: %s", err.Error())
		return
	}

	d.mtx.Lock()
	listener := d.lt.find(base.Seq, base.Type)
	d.mtx.Unlock()

	if listener == nil {
		log.Debugf(
			"No BLE listener for op=%s type=%s seq=%d",
			MsgOpToString(base.Op), MsgTypeToString(base.Type), base.Seq)
		return
	}

	listener.MsgChan <- msg
}

// ErrorAll reports err to every listener and forgets them all.
func (d *Dispatcher) ErrorAll(err error) {
	d.mtx.Lock()
	listeners := d.lt.drain()
	d.mtx.Unlock()

	for _, listener := range listeners {
		listener.ErrChan <- err
	}
}
