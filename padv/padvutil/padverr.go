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

package padvutil

import (
	"fmt"

	"github.com/pkg/errors"
)

// Represents an expired bounded wait.
type TimeoutError struct {
	Text string
}

func NewTimeoutError(text string) *TimeoutError {
	return &TimeoutError{
		Text: text,
	}
}

func FmtTimeoutError(format string, args ...interface{}) *TimeoutError {
	return NewTimeoutError(fmt.Sprintf(format, args...))
}

func (e *TimeoutError) Error() string {
	return e.Text
}

func IsTimeout(err error) bool {
	_, ok := errors.Cause(err).(*TimeoutError)
	return ok
}

// Represents a low-level transport error.
type XportError struct {
	Text string
}

func NewXportError(text string) *XportError {
	return &XportError{text}
}

func FmtXportError(format string, args ...interface{}) *XportError {
	return NewXportError(fmt.Sprintf(format, args...))
}

func (e *XportError) Error() string {
	return e.Text
}

func IsXport(err error) bool {
	if err == nil {
		return false
	}

	_, ok := errors.Cause(err).(*XportError)
	return ok
}

// Represents a non-zero status reported by the BLE host.
type BleHostError struct {
	Text   string
	Status int
}

func NewBleHostError(status int, text string) *BleHostError {
	return &BleHostError{
		Status: status,
		Text:   text,
	}
}

func FmtBleHostError(status int, format string,
	args ...interface{}) *BleHostError {

	return NewBleHostError(status, fmt.Sprintf(format, args...))
}

func (e *BleHostError) Error() string {
	return e.Text
}

func IsBleHost(err error) bool {
	_, ok := errors.Cause(err).(*BleHostError)
	return ok
}

func ToBleHost(err error) *BleHostError {
	if berr, ok := errors.Cause(err).(*BleHostError); ok {
		return berr
	} else {
		return nil
	}
}

// Indicates that the host stack rejected one step of the advertising
// configuration sequence.  The instance is left in the state reached by the
// last successful step.
type ConfigError struct {
	Instance uint8
	Step     string
	Err      error
}

func NewConfigError(instance uint8, step string, err error) *ConfigError {
	return &ConfigError{
		Instance: instance,
		Step:     step,
		Err:      err,
	}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("instance %d: %s failed: %s",
		e.Instance, e.Step, e.Err.Error())
}

func (e *ConfigError) Cause() error {
	return e.Err
}

// Status returns the host status code behind the failure, or 0 if the
// failure did not come from the host.
func (e *ConfigError) Status() int {
	if berr := ToBleHost(e.Err); berr != nil {
		return berr.Status
	}
	return 0
}

// IsConfig and ToConfig do not unwrap with errors.Cause; ConfigError is
// itself a causer and would be skipped.
func IsConfig(err error) bool {
	return ToConfig(err) != nil
}

func ToConfig(err error) *ConfigError {
	for err != nil {
		if cerr, ok := err.(*ConfigError); ok {
			return cerr
		}

		causer, ok := err.(interface{ Cause() error })
		if !ok {
			return nil
		}
		err = causer.Cause()
	}

	return nil
}

// Indicates that no usable identity address could be established after the
// host synced.
type AddressResolutionError struct {
	Text string
	Err  error
}

func NewAddressResolutionError(err error) *AddressResolutionError {
	return &AddressResolutionError{
		Text: "no usable identity address",
		Err:  err,
	}
}

func (e *AddressResolutionError) Error() string {
	if e.Err == nil {
		return e.Text
	}
	return e.Text + ": " + e.Err.Error()
}

func IsAddressResolution(err error) bool {
	_, ok := errors.Cause(err).(*AddressResolutionError)
	return ok
}

// Indicates an attempt to transition to the already-current state.
type AlreadyError struct {
	Text string
}

func NewAlreadyError(text string) *AlreadyError {
	return &AlreadyError{text}
}

func (err *AlreadyError) Error() string {
	return err.Text
}

func IsAlready(err error) bool {
	if err == nil {
		return false
	}

	_, ok := errors.Cause(err).(*AlreadyError)
	return ok
}
