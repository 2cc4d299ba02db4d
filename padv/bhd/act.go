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
	"time"

	log "github.com/sirupsen/logrus"

	. "mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/hs"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

// Transmitter carries requests to blehostd and routes its responses back.
type Transmitter interface {
	Tx(data []byte) error
	AddListener(key ListenerKey) (*Listener, error)
	RemoveListener(listener *Listener) bool
	RspTimeout() time.Duration
}

func BhdTimeoutError(rspType MsgType, seq BleSeq) error {
	str := fmt.Sprintf(
		"Timeout waiting for blehostd to send %s response (seq=%d)",
		MsgTypeToString(rspType), seq)

	log.Debug(str)
	return padvutil.NewXportError(str)
}

func StatusError(op MsgOp, msgType MsgType, status int) error {
	str := fmt.Sprintf("%s %s indicates error: %s (%d)",
		MsgOpToString(op),
		MsgTypeToString(msgType),
		hs.ErrCodeToString(status),
		status)

	log.Debug(str)
	return padvutil.NewBleHostError(status, str)
}

// Blocking.  Transmits a request and waits for the response carrying the
// same sequence number.
func txRsp(x Transmitter, req interface{}, seq BleSeq, rspType MsgType) (
	Msg, error) {

	j, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	bl, err := x.AddListener(SeqKey(seq))
	if err != nil {
		return nil, err
	}
	defer x.RemoveListener(bl)

	if err := x.Tx(j); err != nil {
		return nil, err
	}

	tmo := time.NewTimer(x.RspTimeout())
	defer padvutil.StopAndDrainTimer(tmo)

	for {
		select {
		case err := <-bl.ErrChan:
			return nil, err

		case bm := <-bl.MsgChan:
			switch msg := bm.(type) {
			case *BleErrRsp:
				return nil, padvutil.FmtBleHostError(msg.Status,
					"blehostd rejected %s request: %s (status=%d)",
					MsgTypeToString(rspType), msg.Msg, msg.Status)

			case rspMsg:
				if status := msg.rspStatus(); status != 0 {
					return nil, StatusError(MSG_OP_RSP, rspType, status)
				}
				return bm, nil

			default:
			}

		case <-tmo.C:
			return nil, BhdTimeoutError(rspType, seq)
		}
	}
}

func unexpectedRsp(rspType MsgType, msg Msg) error {
	return padvutil.FmtXportError(
		"blehostd sent unexpected %s response: %T", MsgTypeToString(rspType),
		msg)
}

func SyncXact(x Transmitter) (bool, error) {
	r := NewBleSyncReq()

	msg, err := txRsp(x, r, r.Seq, MSG_TYPE_SYNC)
	if err != nil {
		return false, err
	}

	rsp, ok := msg.(*BleSyncRsp)
	if !ok {
		return false, unexpectedRsp(MSG_TYPE_SYNC, msg)
	}
	return rsp.Synced, nil
}

func ResetXact(x Transmitter) error {
	r := NewBleResetReq()

	_, err := txRsp(x, r, r.Seq, MSG_TYPE_RESET)
	return err
}

func CopyAddrXact(x Transmitter, addrType BleAddrType) (BleAddr, error) {
	r := NewBleCopyAddrReq()
	r.AddrType = addrType

	msg, err := txRsp(x, r, r.Seq, MSG_TYPE_COPY_ADDR)
	if err != nil {
		return BleAddr{}, err
	}

	rsp, ok := msg.(*BleCopyAddrRsp)
	if !ok {
		return BleAddr{}, unexpectedRsp(MSG_TYPE_COPY_ADDR, msg)
	}
	return rsp.Addr, nil
}

func GenRandAddrXact(x Transmitter) (BleAddr, error) {
	r := NewBleGenRandAddrReq()
	r.Nrpa = false

	msg, err := txRsp(x, r, r.Seq, MSG_TYPE_GEN_RAND_ADDR)
	if err != nil {
		return BleAddr{}, err
	}

	rsp, ok := msg.(*BleGenRandAddrRsp)
	if !ok {
		return BleAddr{}, unexpectedRsp(MSG_TYPE_GEN_RAND_ADDR, msg)
	}
	return rsp.Addr, nil
}

func SetRandAddrXact(x Transmitter, addr BleAddr) error {
	r := NewBleSetRandAddrReq()
	r.Addr = addr

	_, err := txRsp(x, r, r.Seq, MSG_TYPE_SET_RAND_ADDR)
	return err
}

// Returns the transmit power the controller selected.
func ExtAdvConfigureXact(x Transmitter, instance uint8,
	params ExtAdvParams) (int8, error) {

	r := NewBleExtAdvConfigureReq()
	r.Instance = instance
	r.ExtAdvParams = params

	msg, err := txRsp(x, r, r.Seq, MSG_TYPE_EXT_ADV_CONFIGURE)
	if err != nil {
		return 0, err
	}

	rsp, ok := msg.(*BleExtAdvConfigureRsp)
	if !ok {
		return 0, unexpectedRsp(MSG_TYPE_EXT_ADV_CONFIGURE, msg)
	}
	return rsp.SelectedTxPower, nil
}

func ExtAdvSetDataXact(x Transmitter, instance uint8, data []byte) error {
	r := NewBleExtAdvSetDataReq()
	r.Instance = instance
	r.Data = BleBytes{data}

	_, err := txRsp(x, r, r.Seq, MSG_TYPE_EXT_ADV_SET_DATA)
	return err
}

func PeriodicAdvConfigureXact(x Transmitter, instance uint8,
	params PeriodicAdvParams) error {

	r := NewBlePeriodicAdvConfigureReq()
	r.Instance = instance
	r.PeriodicAdvParams = params

	_, err := txRsp(x, r, r.Seq, MSG_TYPE_PERIODIC_ADV_CONFIGURE)
	return err
}

func PeriodicAdvStartXact(x Transmitter, instance uint8) error {
	r := NewBlePeriodicAdvStartReq()
	r.Instance = instance

	_, err := txRsp(x, r, r.Seq, MSG_TYPE_PERIODIC_ADV_START)
	return err
}

func ExtAdvStartXact(x Transmitter, instance uint8, durationMs int,
	maxEvents int) error {

	r := NewBleExtAdvStartReq()
	r.Instance = instance
	r.DurationMs = durationMs
	r.MaxEvents = maxEvents

	_, err := txRsp(x, r, r.Seq, MSG_TYPE_EXT_ADV_START)
	return err
}
