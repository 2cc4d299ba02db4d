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

// Package bhd implements a BLE host backed by a blehostd child process.  The
// two sides exchange JSON messages over a Unix domain socket.
package bhd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	. "mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/padvutil"
)

type MsgOp int
type MsgType int
type BleSeq uint32

const BLE_SEQ_NONE BleSeq = 0xffffffff

const (
	MSG_OP_REQ MsgOp = 0
	MSG_OP_RSP MsgOp = 1
	MSG_OP_EVT MsgOp = 2
)

const (
	MSG_TYPE_ERR                    MsgType = 1
	MSG_TYPE_SYNC                   MsgType = 2
	MSG_TYPE_GEN_RAND_ADDR          MsgType = 12
	MSG_TYPE_SET_RAND_ADDR          MsgType = 13
	MSG_TYPE_RESET                  MsgType = 20
	MSG_TYPE_COPY_ADDR              MsgType = 27
	MSG_TYPE_EXT_ADV_CONFIGURE      MsgType = 40
	MSG_TYPE_EXT_ADV_SET_DATA       MsgType = 41
	MSG_TYPE_PERIODIC_ADV_CONFIGURE MsgType = 42
	MSG_TYPE_PERIODIC_ADV_START     MsgType = 43
	MSG_TYPE_EXT_ADV_START          MsgType = 44

	MSG_TYPE_SYNC_EVT  MsgType = 2049
	MSG_TYPE_RESET_EVT MsgType = 2060
	MSG_TYPE_GAP_EVT   MsgType = 2070
)

var MsgOpStringMap = map[MsgOp]string{
	MSG_OP_REQ: "request",
	MSG_OP_RSP: "response",
	MSG_OP_EVT: "event",
}

var MsgTypeStringMap = map[MsgType]string{
	MSG_TYPE_ERR:                    "error",
	MSG_TYPE_SYNC:                   "sync",
	MSG_TYPE_GEN_RAND_ADDR:          "gen_rand_addr",
	MSG_TYPE_SET_RAND_ADDR:          "set_rand_addr",
	MSG_TYPE_RESET:                  "reset",
	MSG_TYPE_COPY_ADDR:              "copy_addr",
	MSG_TYPE_EXT_ADV_CONFIGURE:      "ext_adv_configure",
	MSG_TYPE_EXT_ADV_SET_DATA:       "ext_adv_set_data",
	MSG_TYPE_PERIODIC_ADV_CONFIGURE: "periodic_adv_configure",
	MSG_TYPE_PERIODIC_ADV_START:     "periodic_adv_start",
	MSG_TYPE_EXT_ADV_START:          "ext_adv_start",

	MSG_TYPE_SYNC_EVT:  "sync_evt",
	MSG_TYPE_RESET_EVT: "reset_evt",
	MSG_TYPE_GAP_EVT:   "gap_evt",
}

// Header common to every message.
type BleMsgBase struct {
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`
}

type Msg interface{}

// Implemented by every response; a nonzero status is a host error code.
type rspMsg interface {
	rspStatus() int
}

type BleBytes struct {
	Bytes []byte
}

type BleErrRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

type BleSyncReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`
}

type BleSyncRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Synced bool `json:"synced"`
}

type BleResetReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`
}

type BleResetRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`
}

type BleCopyAddrReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	AddrType BleAddrType `json:"addr_type"`
}

type BleCopyAddrRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Status int     `json:"status"`
	Addr   BleAddr `json:"addr"`
}

type BleGenRandAddrReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Nrpa bool `json:"nrpa"`
}

type BleGenRandAddrRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Status int     `json:"status"`
	Addr   BleAddr `json:"addr"`
}

type BleSetRandAddrReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Addr BleAddr `json:"addr"`
}

type BleSetRandAddrRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Status int `json:"status"`
}

type BleExtAdvConfigureReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Instance uint8 `json:"instance"`
	ExtAdvParams
}

type BleExtAdvConfigureRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Status          int  `json:"status"`
	SelectedTxPower int8 `json:"selected_tx_power"`
}

type BleExtAdvSetDataReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Instance uint8    `json:"instance"`
	Data     BleBytes `json:"data"`
}

type BleExtAdvSetDataRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Status int `json:"status"`
}

type BlePeriodicAdvConfigureReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Instance uint8 `json:"instance"`
	PeriodicAdvParams
}

type BlePeriodicAdvConfigureRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Status int `json:"status"`
}

type BlePeriodicAdvStartReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Instance uint8 `json:"instance"`
}

type BlePeriodicAdvStartRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Status int `json:"status"`
}

type BleExtAdvStartReq struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Instance   uint8 `json:"instance"`
	DurationMs int   `json:"duration_ms"`
	MaxEvents  int   `json:"max_events"`
}

type BleExtAdvStartRsp struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Status int `json:"status"`
}

type BleSyncEvt struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Synced bool `json:"synced"`
}

type BleResetEvt struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	Reason int `json:"reason"`
}

// A GAP event reported for an advertising instance.
type BleGapEvt struct {
	// Header
	Op   MsgOp   `json:"op"`
	Type MsgType `json:"type"`
	Seq  BleSeq  `json:"seq"`

	// Mandatory
	GapType  int   `json:"gap_type"`
	Instance uint8 `json:"instance"`
	Reason   int   `json:"reason"`
}

func (r *BleErrRsp) rspStatus() int                  { return r.Status }
func (r *BleSyncRsp) rspStatus() int                 { return 0 }
func (r *BleResetRsp) rspStatus() int                { return 0 }
func (r *BleCopyAddrRsp) rspStatus() int             { return r.Status }
func (r *BleGenRandAddrRsp) rspStatus() int          { return r.Status }
func (r *BleSetRandAddrRsp) rspStatus() int          { return r.Status }
func (r *BleExtAdvConfigureRsp) rspStatus() int      { return r.Status }
func (r *BleExtAdvSetDataRsp) rspStatus() int        { return r.Status }
func (r *BlePeriodicAdvConfigureRsp) rspStatus() int { return r.Status }
func (r *BlePeriodicAdvStartRsp) rspStatus() int     { return r.Status }
func (r *BleExtAdvStartRsp) rspStatus() int          { return r.Status }

func MsgOpToString(op MsgOp) string {
	s := MsgOpStringMap[op]
	if s == "" {
		return "???"
	}

	return s
}

func MsgOpFromString(s string) (MsgOp, error) {
	for op, name := range MsgOpStringMap {
		if s == name {
			return op, nil
		}
	}

	return MsgOp(0), errors.New("Invalid MsgOp string: " + s)
}

func MsgTypeToString(msgType MsgType) string {
	s := MsgTypeStringMap[msgType]
	if s == "" {
		return "???"
	}

	return s
}

func MsgTypeFromString(s string) (MsgType, error) {
	for msgType, name := range MsgTypeStringMap {
		if s == name {
			return msgType, nil
		}
	}

	return MsgType(0), errors.New("Invalid MsgType string: " + s)
}

func (o MsgOp) MarshalJSON() ([]byte, error) {
	return json.Marshal(MsgOpToString(o))
}

func (o *MsgOp) UnmarshalJSON(data []byte) error {
	var err error

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	*o, err = MsgOpFromString(s)
	return err
}

func (t MsgType) MarshalJSON() ([]byte, error) {
	return json.Marshal(MsgTypeToString(t))
}

func (t *MsgType) UnmarshalJSON(data []byte) error {
	var err error

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	*t, err = MsgTypeFromString(s)
	return err
}

// Encoded as a string of colon-separated hex bytes (e.g., "0x02:0x01:0x06").
func (bb BleBytes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(bb.Bytes) * 5)

	for i, b := range bb.Bytes {
		if i != 0 {
			buf.WriteString(":")
		}
		fmt.Fprintf(&buf, "0x%02x", b)
	}

	return json.Marshal(buf.String())
}

func (bb *BleBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	bb.Bytes = nil
	if len(s) == 0 {
		return nil
	}

	toks := strings.Split(strings.ToLower(s), ":")
	bb.Bytes = make([]byte, len(toks))

	for i, t := range toks {
		if !strings.HasPrefix(t, "0x") {
			return fmt.Errorf(
				"Byte stream contains invalid token; token=%s stream=%s", t, s)
		}

		u64, err := strconv.ParseUint(t, 0, 8)
		if err != nil {
			return err
		}
		bb.Bytes[i] = byte(u64)
	}

	return nil
}

func NextSeq() BleSeq {
	return BleSeq(padvutil.NextSeq())
}

func NewBleSyncReq() *BleSyncReq {
	return &BleSyncReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_SYNC,
		Seq:  NextSeq(),
	}
}

func NewBleResetReq() *BleResetReq {
	return &BleResetReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_RESET,
		Seq:  NextSeq(),
	}
}

func NewBleCopyAddrReq() *BleCopyAddrReq {
	return &BleCopyAddrReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_COPY_ADDR,
		Seq:  NextSeq(),
	}
}

func NewBleGenRandAddrReq() *BleGenRandAddrReq {
	return &BleGenRandAddrReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_GEN_RAND_ADDR,
		Seq:  NextSeq(),
	}
}

func NewBleSetRandAddrReq() *BleSetRandAddrReq {
	return &BleSetRandAddrReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_SET_RAND_ADDR,
		Seq:  NextSeq(),
	}
}

func NewBleExtAdvConfigureReq() *BleExtAdvConfigureReq {
	return &BleExtAdvConfigureReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_EXT_ADV_CONFIGURE,
		Seq:  NextSeq(),
	}
}

func NewBleExtAdvSetDataReq() *BleExtAdvSetDataReq {
	return &BleExtAdvSetDataReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_EXT_ADV_SET_DATA,
		Seq:  NextSeq(),
	}
}

func NewBlePeriodicAdvConfigureReq() *BlePeriodicAdvConfigureReq {
	return &BlePeriodicAdvConfigureReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_PERIODIC_ADV_CONFIGURE,
		Seq:  NextSeq(),
	}
}

func NewBlePeriodicAdvStartReq() *BlePeriodicAdvStartReq {
	return &BlePeriodicAdvStartReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_PERIODIC_ADV_START,
		Seq:  NextSeq(),
	}
}

func NewBleExtAdvStartReq() *BleExtAdvStartReq {
	return &BleExtAdvStartReq{
		Op:   MSG_OP_REQ,
		Type: MSG_TYPE_EXT_ADV_START,
		Seq:  NextSeq(),
	}
}
