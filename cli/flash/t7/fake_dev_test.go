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
package t7

import (
	"context"

	"github.com/juju/errors"

	"github.com/cesanta/t7up/cli/dev"
	"github.com/cesanta/t7up/common/t7"
)

// fakeDev emulates the T7's flash register machinery: cursor
// registers, auto-advancing windows, keyed page erases. It records
// every transaction so tests can assert exact register traffic.
type fakeDev struct {
	serial    uint32
	fwVersion float64
	flash     map[uint32]uint32 // word-aligned byte addr -> value

	readPtr  uint32
	writePtr uint32
	lastKey  uint32

	writeRegCalls  []regWrite
	writeRegsCalls []regsWrite
	rwCalls        [][]dev.Frame

	rebootRequested bool
	closed          bool
	failWith        error // injected into every device op when set
}

type regWrite struct {
	addr, value uint32
}

type regsWrite struct {
	addrs, values []uint32
}

func newFakeDev(serial uint32) *fakeDev {
	return &fakeDev{serial: serial, flash: make(map[uint32]uint32)}
}

func (d *fakeDev) transactions() int {
	return len(d.writeRegCalls) + len(d.writeRegsCalls) + len(d.rwCalls)
}

func (d *fakeDev) SerialNumber() uint32 { return d.serial }

func (d *fakeDev) Close() error {
	d.closed = true
	return nil
}

func (d *fakeDev) WriteReg(ctx context.Context, addr uint32, value uint32) error {
	if d.failWith != nil {
		return d.failWith
	}
	d.writeRegCalls = append(d.writeRegCalls, regWrite{addr, value})
	if addr == t7.RegReqFWUpg && value == t7.ReqFWUpgValue {
		d.rebootRequested = true
	}
	return nil
}

func (d *fakeDev) WriteRegs(ctx context.Context, addrs []uint32, values []uint32) error {
	if d.failWith != nil {
		return d.failWith
	}
	d.writeRegsCalls = append(d.writeRegsCalls, regsWrite{
		addrs:  append([]uint32(nil), addrs...),
		values: append([]uint32(nil), values...),
	})
	if len(addrs) == 2 && addrs[0] == t7.RegEXFKey && addrs[1] == t7.RegEXFErase {
		d.erasePage(values[0], values[1])
	}
	return nil
}

func (d *fakeDev) erasePage(key, addr uint32) {
	for _, r := range []t7.Region{t7.ImageRegion, t7.HeaderRegion} {
		if key != r.Key || addr < r.Base || addr >= r.Base+r.Bytes() {
			continue
		}
		base := addr - addr%t7.FlashPageSize
		for a := base; a < base+t7.FlashPageSize; a += 4 {
			delete(d.flash, a)
		}
	}
}

func (d *fakeDev) RWRegs(ctx context.Context, frames []dev.Frame) ([]uint32, error) {
	if d.failWith != nil {
		return nil, d.failWith
	}
	cp := make([]dev.Frame, len(frames))
	for i, f := range frames {
		cp[i] = f
		cp[i].Values = append([]uint32(nil), f.Values...)
	}
	d.rwCalls = append(d.rwCalls, cp)

	var out []uint32
	for _, f := range frames {
		switch {
		case f.Dir == dev.DirWrite && f.Addr == t7.RegEXFKey:
			d.lastKey = f.Values[0]
		case f.Dir == dev.DirWrite && f.Addr == t7.RegEXFpWrite:
			d.writePtr = f.Values[0]
		case f.Dir == dev.DirWrite && f.Addr == t7.RegEXFpRead:
			d.readPtr = f.Values[0]
		case f.Dir == dev.DirWrite && f.Addr == t7.RegEXFWrite:
			for _, v := range f.Values {
				d.flash[d.writePtr] = v
				d.writePtr += 4
			}
		case f.Dir == dev.DirRead && f.Addr == t7.RegEXFRead:
			for i := 0; i < f.Count; i++ {
				out = append(out, d.readWord(d.readPtr))
				d.readPtr += 4
			}
		default:
			return nil, errors.Errorf("unexpected frame %+v", f)
		}
	}
	return out, nil
}

// Unwritten flash reads as erased.
func (d *fakeDev) readWord(addr uint32) uint32 {
	if v, ok := d.flash[addr]; ok {
		return v
	}
	return t7.EraseFill
}

func (d *fakeDev) ReadName(ctx context.Context, name string) (float64, error) {
	if d.failWith != nil {
		return 0, d.failWith
	}
	if name != t7.RegNameFirmwareVersion {
		return 0, errors.Errorf("unexpected register %q", name)
	}
	return d.fwVersion, nil
}

// fakeEnum hands out the devices it was configured with.
type fakeEnum struct {
	devs      []*fakeDev
	listCalls int
	// skipScans makes the first N scans come back empty, emulating the
	// device still rebooting.
	skipScans int
}

func (e *fakeEnum) ListAll(ctx context.Context, devType, transport string) ([]dev.DeviceInfo, error) {
	e.listCalls++
	if e.listCalls <= e.skipScans {
		return nil, nil
	}
	var out []dev.DeviceInfo
	for _, d := range e.devs {
		out = append(out, dev.DeviceInfo{Serial: d.serial, Addr: "127.0.0.1", FirmwareVersion: d.fwVersion})
	}
	return out, nil
}

func (e *fakeEnum) OpenByType(ctx context.Context, devType, transport string, serial uint32) (dev.DevConn, error) {
	if e.listCalls <= e.skipScans {
		return nil, errors.Errorf("no %s with S/N %d found", devType, serial)
	}
	for _, d := range e.devs {
		if d.serial == serial {
			return d, nil
		}
	}
	return nil, errors.Errorf("no %s with S/N %d found", devType, serial)
}
