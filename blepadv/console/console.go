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

// Package console tails a target board's serial console.  Management frames
// sent over the same line are reassembled and reported separately from text.
package console

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/joaojeronimo/go-crc16"
	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

type Cfg struct {
	DevPath     string
	Baud        int
	ReadTimeout time.Duration
}

func NewCfg() Cfg {
	return Cfg{
		Baud:        115200,
		ReadTimeout: time.Second,
	}
}

type LineKind int

const (
	LINE_KIND_TEXT LineKind = iota
	LINE_KIND_MGMT
)

var LineKindStringMap = map[LineKind]string{
	LINE_KIND_TEXT: "text",
	LINE_KIND_MGMT: "mgmt",
}

func (k LineKind) String() string {
	s := LineKindStringMap[k]
	if s == "" {
		return "???"
	}
	return s
}

type Line struct {
	Kind LineKind

	// Text lines only.
	Text string

	// Management frames only; CRC removed.
	Frame []byte
}

var startedRe = regexp.MustCompile(`Instance (\d+) started \(periodic\)`)

// StartedInstance reports whether a console line announces that periodic
// advertising has started, and on which instance.
func StartedInstance(text string) (uint8, bool) {
	m := startedRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}

	u64, err := strconv.ParseUint(m[1], 10, 8)
	if err != nil {
		return 0, false
	}
	return uint8(u64), true
}

// Framer reassembles newtmgr-over-serial frames.  A frame starts with a line
// prefixed by 0x06 0x09 and continues on lines prefixed by 0x04 0x14.  Each
// line's remainder is base64; the decoded frame is a two-byte big-endian
// length followed by the payload and a CRC16.
type Framer struct {
	pkt    []byte
	pktLen int
}

// Feed processes one line.  It returns true once a line is complete, either
// as text or as the final piece of a frame.
func (f *Framer) Feed(line []byte) (Line, bool, error) {
	for len(line) > 1 && line[0] == '\r' {
		line = line[1:]
	}

	start := len(line) >= 2 && line[0] == 6 && line[1] == 9
	cont := len(line) >= 2 && line[0] == 4 && line[1] == 20
	if !start && !cont {
		return Line{Kind: LINE_KIND_TEXT, Text: string(line)}, true, nil
	}

	data, err := base64.StdEncoding.DecodeString(string(line[2:]))
	if err != nil {
		f.pkt = nil
		return Line{}, false, fmt.Errorf("Couldn't decode base64 string:"+
			" %s\nPacket hex dump:\n%s", line[2:], hex.Dump(line))
	}

	if start {
		if len(data) < 2 {
			return Line{}, false, nil
		}
		f.pktLen = int(binary.BigEndian.Uint16(data[0:2]))
		f.pkt = make([]byte, 0, f.pktLen)
		data = data[2:]
	}

	if f.pkt == nil {
		// Continuation without a start.
		return Line{}, false, nil
	}

	f.pkt = append(f.pkt, data...)
	if len(f.pkt) < f.pktLen {
		return Line{}, false, nil
	}

	pkt := f.pkt
	f.pkt = nil

	if len(pkt) < 2 || crc16.Crc16(pkt) != 0 {
		return Line{}, false, fmt.Errorf("CRC error")
	}

	return Line{Kind: LINE_KIND_MGMT, Frame: pkt[:len(pkt)-2]}, true, nil
}

// Scan reads lines from r until it is exhausted or fn returns false.
func Scan(r io.Reader, fn func(line Line) bool) error {
	var f Framer
	return f.Scan(r, fn)
}

// Scan reads lines from r until it is exhausted or fn returns false.  A
// frame left incomplete when r runs dry is resumed by the next call.
func (f *Framer) Scan(r io.Reader, fn func(line Line) bool) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line, ok, err := f.Feed(scanner.Bytes())
		if err != nil {
			log.Debugf("console: %s", err.Error())
			continue
		}
		if ok && !fn(line) {
			return nil
		}
	}

	return scanner.Err()
}

// Tail opens the serial port and passes each line to fn until the context
// is done, fn returns false, or the port fails.
func Tail(ctx context.Context, cfg Cfg, fn func(line Line) bool) error {
	c := &serial.Config{
		Name:        cfg.DevPath,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	}

	port, err := serial.OpenPort(c)
	if err != nil {
		return err
	}
	defer port.Close()

	if err := port.Flush(); err != nil {
		return err
	}

	stopped := false
	wrapped := func(line Line) bool {
		if ctx.Err() != nil {
			return false
		}
		if !fn(line) {
			stopped = true
			return false
		}
		return true
	}

	var f Framer
	for ctx.Err() == nil && !stopped {
		// The scanner hits EOF on every read timeout; start a new one.
		if err := f.Scan(port, wrapped); err != nil {
			return err
		}
	}

	return nil
}
