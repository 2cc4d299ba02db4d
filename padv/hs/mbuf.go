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

import (
	"fmt"
	"sync"
)

// Mbuf holds advertising data on its way to the host.  The buffer may grow
// past its initial size on append.  Once handed off, it belongs to the host
// and may no longer be modified by the caller.
type Mbuf struct {
	data      []byte
	handedOff bool
	pool      *HeapPool
}

func (m *Mbuf) Append(b []byte) error {
	if m.handedOff {
		return fmt.Errorf("mbuf already handed off")
	}

	m.data = append(m.data, b...)
	return nil
}

func (m *Mbuf) Bytes() []byte {
	return m.data
}

func (m *Mbuf) Len() int {
	return len(m.data)
}

func (m *Mbuf) HandedOff() bool {
	return m.handedOff
}

// HandOff marks the buffer as owned by the host and returns its contents.
// Hosts call this on receipt; the pool's block is released.
func (m *Mbuf) HandOff() []byte {
	if !m.handedOff {
		m.handedOff = true
		if m.pool != nil {
			m.pool.free()
		}
	}
	return m.data
}

type MbufPool interface {
	Get(size int) (*Mbuf, error)
}

// HeapPool allocates mbufs from the heap, bounded by a block count.  A zero
// block count means unbounded.
type HeapPool struct {
	Blocks int

	mtx   sync.Mutex
	inUse int
}

func (p *HeapPool) Get(size int) (*Mbuf, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.Blocks != 0 && p.inUse >= p.Blocks {
		return nil, fmt.Errorf("mbuf pool exhausted (%d blocks)", p.Blocks)
	}
	p.inUse++

	return &Mbuf{
		data: make([]byte, 0, size),
		pool: p,
	}, nil
}

func (p *HeapPool) InUse() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	return p.inUse
}

func (p *HeapPool) free() {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.inUse > 0 {
		p.inUse--
	}
}

// DefaultPool is an unbounded heap pool.
var DefaultPool MbufPool = &HeapPool{}
