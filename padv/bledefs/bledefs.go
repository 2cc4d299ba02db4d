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

package bledefs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Legacy advertising PDU payload limit.
const BLE_HCI_MAX_ADV_DATA_LEN = 31

// Advertising flags AD type values.
const (
	BLE_HS_ADV_F_DISC_LTD    byte = 0x01
	BLE_HS_ADV_F_DISC_GEN    byte = 0x02
	BLE_HS_ADV_F_BREDR_UNSUP byte = 0x04
)

// Tx power value telling the controller to pick its own power level.
const BLE_TX_POWER_DFLT int8 = 127

// Legal interval ranges, in controller ticks.
const (
	BLE_EXT_ADV_ITVL_MIN      = 0x000020
	BLE_EXT_ADV_ITVL_MAX      = 0xffffff
	BLE_PERIODIC_ADV_ITVL_MIN = 0x0006
	BLE_PERIODIC_ADV_ITVL_MAX = 0xffff
)

const (
	extAdvItvlTick      = 625 * time.Microsecond
	periodicAdvItvlTick = 1250 * time.Microsecond
)

type BleAddrType int

const (
	BLE_ADDR_TYPE_PUBLIC  BleAddrType = 0
	BLE_ADDR_TYPE_RANDOM  BleAddrType = 1
	BLE_ADDR_TYPE_RPA_PUB BleAddrType = 2
	BLE_ADDR_TYPE_RPA_RND BleAddrType = 3
)

var BleAddrTypeStringMap = map[BleAddrType]string{
	BLE_ADDR_TYPE_PUBLIC:  "public",
	BLE_ADDR_TYPE_RANDOM:  "random",
	BLE_ADDR_TYPE_RPA_PUB: "rpa_pub",
	BLE_ADDR_TYPE_RPA_RND: "rpa_rnd",
}

func BleAddrTypeToString(addrType BleAddrType) string {
	s := BleAddrTypeStringMap[addrType]
	if s == "" {
		return "???"
	}

	return s
}

func BleAddrTypeFromString(s string) (BleAddrType, error) {
	for addrType, name := range BleAddrTypeStringMap {
		if s == name {
			return addrType, nil
		}
	}

	return BleAddrType(0), fmt.Errorf("Invalid BleAddrType string: %s", s)
}

func (a BleAddrType) String() string {
	return BleAddrTypeToString(a)
}

func (a BleAddrType) MarshalJSON() ([]byte, error) {
	return json.Marshal(BleAddrTypeToString(a))
}

func (a *BleAddrType) UnmarshalJSON(data []byte) error {
	var err error

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	*a, err = BleAddrTypeFromString(s)
	return err
}

type BleAddr struct {
	Bytes [6]byte
}

func ParseBleAddr(s string) (BleAddr, error) {
	ba := BleAddr{}

	toks := strings.Split(strings.ToLower(s), ":")
	if len(toks) != 6 {
		return ba, fmt.Errorf("invalid BLE addr string: %s", s)
	}

	for i, t := range toks {
		u64, err := strconv.ParseUint(t, 16, 8)
		if err != nil {
			return ba, err
		}
		ba.Bytes[i] = byte(u64)
	}

	return ba, nil
}

func (ba BleAddr) String() string {
	var buf bytes.Buffer
	buf.Grow(len(ba.Bytes) * 3)

	for i, b := range ba.Bytes {
		if i != 0 {
			buf.WriteString(":")
		}
		fmt.Fprintf(&buf, "%02x", b)
	}

	return buf.String()
}

func (ba BleAddr) IsZero() bool {
	return ba.Bytes == [6]byte{}
}

func (ba BleAddr) MarshalJSON() ([]byte, error) {
	return json.Marshal(ba.String())
}

func (ba *BleAddr) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	var err error
	*ba, err = ParseBleAddr(s)
	if err != nil {
		return err
	}

	return nil
}

type BleDev struct {
	AddrType BleAddrType
	Addr     BleAddr
}

func (bd BleDev) String() string {
	return fmt.Sprintf("%s,%s",
		BleAddrTypeToString(bd.AddrType),
		bd.Addr.String())
}

type BlePhy int

const (
	BLE_PHY_1M    BlePhy = 1
	BLE_PHY_2M    BlePhy = 2
	BLE_PHY_CODED BlePhy = 3
)

var BlePhyStringMap = map[BlePhy]string{
	BLE_PHY_1M:    "1m",
	BLE_PHY_2M:    "2m",
	BLE_PHY_CODED: "coded",
}

func BlePhyToString(phy BlePhy) string {
	s := BlePhyStringMap[phy]
	if s == "" {
		return "???"
	}

	return s
}

func BlePhyFromString(s string) (BlePhy, error) {
	for phy, name := range BlePhyStringMap {
		if s == name {
			return phy, nil
		}
	}

	return BlePhy(0), fmt.Errorf("Invalid BlePhy string: %s", s)
}

func (p BlePhy) String() string {
	return BlePhyToString(p)
}

func (p BlePhy) MarshalJSON() ([]byte, error) {
	return json.Marshal(BlePhyToString(p))
}

func (p *BlePhy) UnmarshalJSON(data []byte) error {
	var err error

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	*p, err = BlePhyFromString(s)
	return err
}

// Parameters of an extended advertising instance.  Intervals are in units of
// 0.625 ms.
type ExtAdvParams struct {
	OwnAddrType  BleAddrType `json:"own_addr_type" structs:"own_addr_type"`
	ItvlMin      uint32      `json:"itvl_min" structs:"itvl_min"`
	ItvlMax      uint32      `json:"itvl_max" structs:"itvl_max"`
	PrimaryPhy   BlePhy      `json:"primary_phy" structs:"primary_phy"`
	SecondaryPhy BlePhy      `json:"secondary_phy" structs:"secondary_phy"`
	TxPower      int8        `json:"tx_power" structs:"tx_power"`
	Sid          uint8       `json:"sid" structs:"sid"`
}

func (p *ExtAdvParams) Validate() error {
	if p.ItvlMin > p.ItvlMax {
		return fmt.Errorf("ext adv itvl_min (%d) exceeds itvl_max (%d)",
			p.ItvlMin, p.ItvlMax)
	}
	if p.ItvlMin < BLE_EXT_ADV_ITVL_MIN || p.ItvlMax > BLE_EXT_ADV_ITVL_MAX {
		return fmt.Errorf("ext adv interval out of range: [%d, %d]",
			p.ItvlMin, p.ItvlMax)
	}
	if BleAddrTypeStringMap[p.OwnAddrType] == "" {
		return fmt.Errorf("invalid own address type: %d", p.OwnAddrType)
	}
	if BlePhyStringMap[p.PrimaryPhy] == "" ||
		BlePhyStringMap[p.SecondaryPhy] == "" {

		return fmt.Errorf("invalid phy: primary=%d secondary=%d",
			p.PrimaryPhy, p.SecondaryPhy)
	}
	if p.PrimaryPhy == BLE_PHY_2M {
		return fmt.Errorf("2m phy not permitted on primary channels")
	}
	if p.Sid > 0x0f {
		return fmt.Errorf("invalid sid: %d", p.Sid)
	}

	return nil
}

// Parameters of periodic advertising.  Intervals are in units of 1.25 ms.
type PeriodicAdvParams struct {
	ItvlMin        uint16 `json:"itvl_min" structs:"periodic_itvl_min"`
	ItvlMax        uint16 `json:"itvl_max" structs:"periodic_itvl_max"`
	IncludeTxPower bool   `json:"include_tx_power" structs:"include_tx_power"`
}

func (p *PeriodicAdvParams) Validate() error {
	if p.ItvlMin > p.ItvlMax {
		return fmt.Errorf("periodic adv itvl_min (%d) exceeds itvl_max (%d)",
			p.ItvlMin, p.ItvlMax)
	}
	if p.ItvlMin < BLE_PERIODIC_ADV_ITVL_MIN {
		return fmt.Errorf("periodic adv interval out of range: [%d, %d]",
			p.ItvlMin, p.ItvlMax)
	}

	return nil
}

func ExtAdvItvlDuration(ticks uint32) time.Duration {
	return time.Duration(ticks) * extAdvItvlTick
}

func PeriodicAdvItvlDuration(ticks uint16) time.Duration {
	return time.Duration(ticks) * periodicAdvItvlTick
}
