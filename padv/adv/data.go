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

package adv

import (
	bleadv "github.com/JuulLabs-OSS/ble/linux/adv"
	"github.com/pkg/errors"

	"mynewt.apache.org/blepadv/padv/bledefs"
	"mynewt.apache.org/blepadv/padv/hs"
)

// Flags advertised by the instance: general discoverable, LE only.
const AdvFlags = bledefs.BLE_HS_ADV_F_DISC_GEN | bledefs.BLE_HS_ADV_F_BREDR_UNSUP

// EncodeFields encodes the instance's advertising data structures.
func EncodeFields() ([]byte, error) {
	p, err := bleadv.NewPacket(bleadv.Flags(AdvFlags))
	if err != nil {
		return nil, errors.Wrap(err, "encoding advertising flags")
	}

	return p.Bytes(), nil
}

// BuildAdvData fills a buffer of legacy PDU size from the pool with the
// instance's advertising data.
func BuildAdvData(pool hs.MbufPool) (*hs.Mbuf, error) {
	fields, err := EncodeFields()
	if err != nil {
		return nil, err
	}

	m, err := pool.Get(bledefs.BLE_HCI_MAX_ADV_DATA_LEN)
	if err != nil {
		return nil, err
	}

	if err := m.Append(fields); err != nil {
		return nil, err
	}

	return m, nil
}
