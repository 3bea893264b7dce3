// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Package dev defines the register-level device link the upgrader
// drives, and provides its Ethernet implementation. The link works in
// whole 32-bit logical registers; the transport maps each to two
// consecutive 16-bit Modbus registers.
package dev

import (
	"context"

	"github.com/juju/errors"

	"github.com/cesanta/t7up/common/t7"
)

// Direction says which way a frame moves data.
type Direction int

const (
	DirRead Direction = iota
	DirWrite
)

func (d Direction) String() string {
	if d == DirRead {
		return "read"
	}
	return "write"
}

// Frame is one leg of a mixed register operation: Count values read
// from or written to Addr. Values must hold Count entries for writes
// and is ignored for reads.
type Frame struct {
	Addr   uint32
	Dir    Direction
	Count  int
	Values []uint32
}

// DevConn is an open register link to one device. Implementations
// execute each call as a single acknowledged transaction; callers rely
// on that for operations that share device-side cursor state.
type DevConn interface {
	// WriteReg writes one register.
	WriteReg(ctx context.Context, addr uint32, value uint32) error
	// WriteRegs writes values[i] to addrs[i], all in one transaction.
	WriteRegs(ctx context.Context, addrs []uint32, values []uint32) error
	// RWRegs executes the frames in order in one transaction and
	// returns the concatenated results of the read frames.
	RWRegs(ctx context.Context, frames []Frame) ([]uint32, error)
	// ReadName reads a named register, converting to the register's
	// native type (f32 registers come back as their float value).
	ReadName(ctx context.Context, name string) (float64, error)
	// SerialNumber is the serial the device reported when opened.
	SerialNumber() uint32
	Close() error
}

// DeviceInfo describes a device found during enumeration.
type DeviceInfo struct {
	Serial          uint32
	Addr            string
	FirmwareVersion float64
}

// Enumerator lists devices of a given type on a transport and opens
// them by serial number.
type Enumerator interface {
	ListAll(ctx context.Context, devType, transport string) ([]DeviceInfo, error)
	OpenByType(ctx context.Context, devType, transport string, serial uint32) (DevConn, error)
}

// Device type and transport tags accepted by Enumerator.
const (
	TypeT7            = "T7"
	TransportEthernet = "ethernet"
)

type namedReg struct {
	addr  uint32
	isF32 bool
}

var regsByName = map[string]namedReg{
	t7.RegNameFirmwareVersion: {t7.RegFirmwareVersion, true},
	t7.RegNameHardwareVersion: {60000, true},
	t7.RegNameSerialNumber:    {t7.RegSerialNumber, false},
}

// ResolveName maps a register name to its address and type.
func ResolveName(name string) (addr uint32, isF32 bool, err error) {
	r, ok := regsByName[name]
	if !ok {
		return 0, false, errors.Errorf("unknown register name %q", name)
	}
	return r.addr, r.isF32, nil
}
