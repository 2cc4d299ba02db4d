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

package hs

// NimBLE host status codes.  Controller (HCI) statuses are reported offset
// by ERR_CODE_HCI_BASE.
const ERR_CODE_HCI_BASE = 0x200

const (
	ERR_CODE_EAGAIN          int = 1
	ERR_CODE_EALREADY        int = 2
	ERR_CODE_EINVAL          int = 3
	ERR_CODE_EMSGSIZE        int = 4
	ERR_CODE_ENOENT          int = 5
	ERR_CODE_ENOMEM          int = 6
	ERR_CODE_ENOTCONN        int = 7
	ERR_CODE_ENOTSUP         int = 8
	ERR_CODE_EAPP            int = 9
	ERR_CODE_EBADDATA        int = 10
	ERR_CODE_EOS             int = 11
	ERR_CODE_ECONTROLLER     int = 12
	ERR_CODE_ETIMEOUT        int = 13
	ERR_CODE_EDONE           int = 14
	ERR_CODE_EBUSY           int = 15
	ERR_CODE_EREJECT         int = 16
	ERR_CODE_EUNKNOWN        int = 17
	ERR_CODE_EROLE           int = 18
	ERR_CODE_ETIMEOUT_HCI    int = 19
	ERR_CODE_ENOMEM_EVT      int = 20
	ERR_CODE_ENOADDR         int = 21
	ERR_CODE_ENOTSYNCED      int = 22
	ERR_CODE_EAUTHEN         int = 23
	ERR_CODE_EAUTHOR         int = 24
	ERR_CODE_EENCRYPT        int = 25
	ERR_CODE_EENCRYPT_KEY_SZ int = 26
	ERR_CODE_ESTORE_CAP      int = 27
	ERR_CODE_ESTORE_FAIL     int = 28
	ERR_CODE_EPREEMPTED      int = 29
	ERR_CODE_EDISABLED       int = 30
	ERR_CODE_ESTALLED        int = 31
)

var ErrCodeStringMap = map[int]string{
	ERR_CODE_EAGAIN:          "eagain",
	ERR_CODE_EALREADY:        "ealready",
	ERR_CODE_EINVAL:          "einval",
	ERR_CODE_EMSGSIZE:        "emsgsize",
	ERR_CODE_ENOENT:          "enoent",
	ERR_CODE_ENOMEM:          "enomem",
	ERR_CODE_ENOTCONN:        "enotconn",
	ERR_CODE_ENOTSUP:         "enotsup",
	ERR_CODE_EAPP:            "eapp",
	ERR_CODE_EBADDATA:        "ebaddata",
	ERR_CODE_EOS:             "eos",
	ERR_CODE_ECONTROLLER:     "econtroller",
	ERR_CODE_ETIMEOUT:        "etimeout",
	ERR_CODE_EDONE:           "edone",
	ERR_CODE_EBUSY:           "ebusy",
	ERR_CODE_EREJECT:         "ereject",
	ERR_CODE_EUNKNOWN:        "eunknown",
	ERR_CODE_EROLE:           "erole",
	ERR_CODE_ETIMEOUT_HCI:    "etimeout_hci",
	ERR_CODE_ENOMEM_EVT:      "enomem_evt",
	ERR_CODE_ENOADDR:         "enoaddr",
	ERR_CODE_ENOTSYNCED:      "enotsynced",
	ERR_CODE_EAUTHEN:         "eauthen",
	ERR_CODE_EAUTHOR:         "eauthor",
	ERR_CODE_EENCRYPT:        "eencrypt",
	ERR_CODE_EENCRYPT_KEY_SZ: "eencrypt_key_sz",
	ERR_CODE_ESTORE_CAP:      "estore_cap",
	ERR_CODE_ESTORE_FAIL:     "estore_fail",
	ERR_CODE_EPREEMPTED:      "epreempted",
	ERR_CODE_EDISABLED:       "edisabled",
	ERR_CODE_ESTALLED:        "estalled",
}

// Controller statuses an advertiser is likely to see.
const (
	ERR_CODE_HCI_HW_FAIL           int = 0x03
	ERR_CODE_HCI_MEM_CAPACITY      int = 0x07
	ERR_CODE_HCI_CMD_DISALLOWED    int = 0x0c
	ERR_CODE_HCI_UNSUPPORTED       int = 0x11
	ERR_CODE_HCI_INV_HCI_CMD_PARMS int = 0x12
	ERR_CODE_HCI_UNSPECIFIED       int = 0x1f
	ERR_CODE_HCI_CTLR_BUSY         int = 0x3a
	ERR_CODE_HCI_PARM_OUT_OF_RANGE int = 0x30
	ERR_CODE_HCI_ADV_TMO           int = 0x3c
	ERR_CODE_HCI_UNK_ADV_ID        int = 0x42
	ERR_CODE_HCI_LIMIT_REACHED     int = 0x43
	ERR_CODE_HCI_OP_CANCELLED      int = 0x44
	ERR_CODE_HCI_PACKET_TOO_LONG   int = 0x45
)

var HciErrCodeStringMap = map[int]string{
	ERR_CODE_HCI_HW_FAIL:           "hw fail",
	ERR_CODE_HCI_MEM_CAPACITY:      "mem capacity",
	ERR_CODE_HCI_CMD_DISALLOWED:    "cmd disallowed",
	ERR_CODE_HCI_UNSUPPORTED:       "unsupported",
	ERR_CODE_HCI_INV_HCI_CMD_PARMS: "inv hci cmd parms",
	ERR_CODE_HCI_UNSPECIFIED:       "unspecified",
	ERR_CODE_HCI_CTLR_BUSY:         "ctlr busy",
	ERR_CODE_HCI_PARM_OUT_OF_RANGE: "parm out of range",
	ERR_CODE_HCI_ADV_TMO:           "adv tmo",
	ERR_CODE_HCI_UNK_ADV_ID:        "unknown adv id",
	ERR_CODE_HCI_LIMIT_REACHED:     "limit reached",
	ERR_CODE_HCI_OP_CANCELLED:      "op cancelled by host",
	ERR_CODE_HCI_PACKET_TOO_LONG:   "packet too long",
}

func ErrCodeToString(e int) string {
	var s string

	switch {
	case e >= ERR_CODE_HCI_BASE && e < ERR_CODE_HCI_BASE+0x100:
		s = HciErrCodeStringMap[e-ERR_CODE_HCI_BASE]

	default:
		s = ErrCodeStringMap[e]
	}

	if s == "" {
		s = "unknown"
	}

	return s
}
