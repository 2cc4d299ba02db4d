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
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"mynewt.apache.org/newt/util/unixchild"

	"mynewt.apache.org/blepadv/padv/padvutil"
)

type XportCfg struct {
	// ***********************
	// *** Required fields ***
	// ***********************

	// Path of Unix domain socket to create and listen on.
	SockPath string

	// Path of the blehostd executable.
	BlehostdPath string

	// Path of the BLE controller device (e.g., /dev/ttyUSB0).
	DevPath string

	// ***********************
	// *** Optional fields ***
	// ***********************

	// How long to wait for the blehostd process to connect to the Unix domain
	// socket.
	// Default: 1 second.
	BlehostdAcceptTimeout time.Duration

	// How long to wait for a JSON response from the blehostd process.
	// Default: 10 seconds.
	BlehostdRspTimeout time.Duration

	// How long to allow for the host and controller to sync at startup.
	// Default: 10 seconds.
	SyncTimeout time.Duration
}

func NewXportCfg() XportCfg {
	return XportCfg{
		BlehostdAcceptTimeout: time.Second,
		BlehostdRspTimeout:    10 * time.Second,
		SyncTimeout:           10 * time.Second,
	}
}

// child is the blehostd process as seen by the transport.
type child interface {
	Start() error
	Stop()
	Tx(data []byte) error
	FromChild() <-chan []byte
	ErrChild() <-chan error
}

type unixChild struct {
	client *unixchild.Client
}

func newUnixChild(cfg XportCfg) *unixChild {
	config := unixchild.Config{
		SockPath:      cfg.SockPath,
		ChildPath:     cfg.BlehostdPath,
		ChildArgs:     []string{cfg.DevPath, cfg.SockPath},
		Depth:         10,
		MaxMsgSz:      10240,
		AcceptTimeout: cfg.BlehostdAcceptTimeout,
	}

	return &unixChild{
		client: unixchild.New(config),
	}
}

func (uc *unixChild) Start() error {
	if err := uc.client.Start(); err != nil {
		if unixchild.IsUcAcceptError(err) {
			return padvutil.NewXportError(
				"blehostd did not connect to socket; " +
					"controller not attached?")
		}
		return padvutil.NewXportError(
			"Failed to start child process: " + err.Error())
	}

	return nil
}

func (uc *unixChild) Stop() {
	uc.client.Stop()
}

func (uc *unixChild) Tx(data []byte) error {
	return uc.client.TxToChild(data)
}

func (uc *unixChild) FromChild() <-chan []byte {
	return uc.client.FromChild
}

func (uc *unixChild) ErrChild() <-chan error {
	return uc.client.ErrChild
}

type BleXportState int

const (
	BLE_XPORT_STATE_STOPPED BleXportState = iota
	BLE_XPORT_STATE_STARTING
	BLE_XPORT_STATE_STARTED
	BLE_XPORT_STATE_STOPPING
)

var BleXportStateStringMap = map[BleXportState]string{
	BLE_XPORT_STATE_STOPPED:  "stopped",
	BLE_XPORT_STATE_STARTING: "starting",
	BLE_XPORT_STATE_STARTED:  "started",
	BLE_XPORT_STATE_STOPPING: "stopping",
}

func (s BleXportState) String() string {
	str := BleXportStateStringMap[s]
	if str == "" {
		return "???"
	}
	return str
}

// BleXport owns the blehostd process and the JSON message stream to and from
// it.  Unsolicited events (sync, reset, GAP) are passed to the event
// callback.
type BleXport struct {
	cfg        XportCfg
	d          *Dispatcher
	child      child
	state      BleXportState
	stateMtx   sync.Mutex
	stopChan   chan struct{}
	readyBcast padvutil.Bcaster

	// Invoked from the transport's event goroutine.
	evtCb func(msg Msg)

	// Invoked if the transport shuts down on its own after it started.
	failCb func(err error)
}

func NewBleXport(cfg XportCfg) *BleXport {
	return newBleXport(cfg, newUnixChild(cfg))
}

func newBleXport(cfg XportCfg, c child) *BleXport {
	dflt := NewXportCfg()
	if cfg.BlehostdRspTimeout <= 0 {
		cfg.BlehostdRspTimeout = dflt.BlehostdRspTimeout
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = dflt.SyncTimeout
	}

	return &BleXport{
		cfg:   cfg,
		d:     NewDispatcher(),
		child: c,
	}
}

func (bx *BleXport) addEvtListener(typ MsgType, name string) (
	*Listener, error) {

	key := TypeKey(typ)
	padvutil.LogAddListener(3, key, 0, name)
	return bx.AddListener(key)
}

func (bx *BleXport) getState() BleXportState {
	bx.stateMtx.Lock()
	defer bx.stateMtx.Unlock()

	return bx.state
}

func (bx *BleXport) setStateFrom(from BleXportState, to BleXportState) bool {
	bx.stateMtx.Lock()
	defer bx.stateMtx.Unlock()

	if bx.state != from {
		return false
	}

	bx.state = to
	switch bx.state {
	case BLE_XPORT_STATE_STARTED:
		bx.readyBcast.SendAndClear(nil)
	case BLE_XPORT_STATE_STOPPED:
		bx.readyBcast.SendAndClear(
			padvutil.NewXportError("BLE transport stopped"))
	default:
	}

	return true
}

// Blocks until the transport has started or has failed to start.
func (bx *BleXport) blockUntilReady() error {
	var ch chan interface{}

	bx.stateMtx.Lock()
	switch bx.state {
	case BLE_XPORT_STATE_STARTED:
		bx.stateMtx.Unlock()
		return nil

	case BLE_XPORT_STATE_STOPPED, BLE_XPORT_STATE_STOPPING:
		bx.stateMtx.Unlock()
		return padvutil.NewXportError(
			"Attempt to use BLE transport without starting it")

	default:
		ch = bx.readyBcast.Listen()
	}
	bx.stateMtx.Unlock()

	itf := <-ch
	if itf == nil {
		return nil
	}
	return itf.(error)
}

func (bx *BleXport) shutdown(explicit bool, err error) {
	padvutil.Assert(padvutil.IsXport(err))

	log.Debugf("Shutting down BLE transport")

	bx.stateMtx.Lock()

	var fullyStarted bool
	var already bool

	switch bx.state {
	case BLE_XPORT_STATE_STARTED:
		fullyStarted = true
	case BLE_XPORT_STATE_STARTING:
	default:
		already = true
	}

	if !already {
		bx.state = BLE_XPORT_STATE_STOPPING
	}

	bx.stateMtx.Unlock()

	if already {
		// Shutdown already in progress.
		return
	}

	// Indicate an error to all of this transport's listeners.  This prevents
	// them from blocking endlessly while awaiting a BLE message.
	log.Debugf("Stopping BLE dispatcher")
	bx.d.ErrorAll(err)

	if explicit && fullyStarted {
		// Stop advertising before blehostd goes away.
		if err := ResetXact(bx); err != nil {
			log.Debugf("Failed to reset controller: %s", err.Error())
		}
	}

	// Stop all of this transport's go routines.
	close(bx.stopChan)

	log.Debugf("Stopping blehostd")
	bx.child.Stop()

	bx.setStateFrom(BLE_XPORT_STATE_STOPPING, BLE_XPORT_STATE_STOPPED)

	if !explicit && fullyStarted && bx.failCb != nil {
		bx.failCb(err)
	}
}

func (bx *BleXport) Stop() error {
	bx.shutdown(true, padvutil.NewXportError("xport stopped"))
	return nil
}

// Start launches blehostd and blocks until the host and controller are
// synced.
func (bx *BleXport) Start() error {
	if !bx.setStateFrom(BLE_XPORT_STATE_STOPPED, BLE_XPORT_STATE_STARTING) {
		return padvutil.NewXportError("BLE xport started twice")
	}

	bx.stopChan = make(chan struct{})

	if err := bx.child.Start(); err != nil {
		bx.setStateFrom(BLE_XPORT_STATE_STARTING, BLE_XPORT_STATE_STOPPED)
		return err
	}

	// Listen for errors and data from the blehostd process.
	stopChan := bx.stopChan
	go func() {
		for {
			select {
			case err := <-bx.child.ErrChild():
				err = padvutil.NewXportError("BLE transport error: " +
					err.Error())
				go bx.shutdown(false, err)

			case buf := <-bx.child.FromChild():
				if len(buf) != 0 {
					log.Debugf("Receive from blehostd:\n%s", hex.Dump(buf))
					bx.d.Dispatch(buf)
				}

			case <-stopChan:
				return
			}
		}
	}()

	syncl, err := bx.addEvtListener(MSG_TYPE_SYNC_EVT, "sync")
	if err != nil {
		bx.shutdown(false, padvutil.NewXportError(err.Error()))
		return err
	}
	resetl, err := bx.addEvtListener(MSG_TYPE_RESET_EVT, "reset")
	if err != nil {
		bx.shutdown(false, padvutil.NewXportError(err.Error()))
		return err
	}
	gapl, err := bx.addEvtListener(MSG_TYPE_GAP_EVT, "gap")
	if err != nil {
		bx.shutdown(false, padvutil.NewXportError(err.Error()))
		return err
	}

	synced, err := SyncXact(bx)
	if err != nil {
		bx.shutdown(false, padvutil.NewXportError(
			"Failed to query sync status: "+err.Error()))
		return err
	}

	// Block until host and controller are synced.
	if !synced {
		tmoChan := time.After(bx.cfg.SyncTimeout)
	SyncLoop:
		for {
			select {
			case err := <-syncl.ErrChan:
				bx.shutdown(false, padvutil.NewXportError(err.Error()))
				return err
			case bm := <-syncl.MsgChan:
				switch msg := bm.(type) {
				case *BleSyncEvt:
					if msg.Synced {
						break SyncLoop
					}
				}
			case <-tmoChan:
				err := padvutil.NewXportError(
					"Timeout waiting for host <-> controller sync")
				bx.shutdown(false, err)
				return err
			}
		}
	}

	// Host and controller are synced.  Listen for events in the background:
	//     * sync loss and regain
	//     * stack reset
	//     * GAP events
	go func() {
		defer bx.RemoveListener(syncl)
		defer bx.RemoveListener(resetl)
		defer bx.RemoveListener(gapl)

		for {
			var msg Msg

			select {
			case <-syncl.ErrChan:
				return
			case <-resetl.ErrChan:
				return
			case <-gapl.ErrChan:
				return
			case msg = <-syncl.MsgChan:
			case msg = <-resetl.MsgChan:
			case msg = <-gapl.MsgChan:
			case <-stopChan:
				return
			}

			if bx.evtCb != nil {
				bx.evtCb(msg)
			}
		}
	}()

	if !bx.setStateFrom(BLE_XPORT_STATE_STARTING, BLE_XPORT_STATE_STARTED) {
		return padvutil.NewXportError(
			"Internal error; BLE transport in unexpected state")
	}

	return nil
}

// Transmits data to blehostd.  Requests issued while the transport is
// starting are allowed so that startup can query the host.
func (bx *BleXport) Tx(data []byte) error {
	switch bx.getState() {
	case BLE_XPORT_STATE_STARTING, BLE_XPORT_STATE_STARTED,
		BLE_XPORT_STATE_STOPPING:

	default:
		return padvutil.NewXportError(
			"Attempt to transmit while BLE transport is stopped")
	}

	log.Debugf("Tx to blehostd:\n%s", hex.Dump(data))
	return bx.child.Tx(data)
}

func (bx *BleXport) AddListener(key ListenerKey) (*Listener, error) {
	listener := NewListener(key)
	if err := bx.d.AddListener(listener); err != nil {
		return nil, err
	}
	return listener, nil
}

func (bx *BleXport) RemoveListener(listener *Listener) bool {
	return bx.d.RemoveListener(listener)
}

func (bx *BleXport) RspTimeout() time.Duration {
	return bx.cfg.BlehostdRspTimeout
}

func (bx *BleXport) String() string {
	return fmt.Sprintf("blehostd=%s dev=%s sock=%s state=%s",
		bx.cfg.BlehostdPath, bx.cfg.DevPath, bx.cfg.SockPath, bx.getState())
}
