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
package dev

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/t7up/common/t7"
)

const (
	fnReadRegs  = 0x03
	fnWriteRegs = 0x10
	// The vendor mixed-frame function: several read and write frames
	// against arbitrary registers, executed as one transaction.
	fnFeedback = 0x4C

	mbapHeaderLen = 7
	unitID        = 1

	defaultIOTimeout = 10 * time.Second
)

// TCPDevConn is a DevConn over the device's Modbus-TCP register
// interface. It is not safe for concurrent use; the upgrade pipeline
// holds it exclusively.
type TCPDevConn struct {
	conn   net.Conn
	addr   string
	serial uint32
	txnID  uint16
}

// DialTCP opens a register link to addr (host or host:port; the Modbus
// port is assumed if absent) and reads the device's serial number.
func DialTCP(ctx context.Context, addr string) (*TCPDevConn, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(t7.ModbusTCPPort))
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to connect to %s", addr)
	}
	dc := &TCPDevConn{conn: conn, addr: addr}
	sn, err := dc.readU32(ctx, t7.RegSerialNumber)
	if err != nil {
		conn.Close()
		return nil, errors.Annotatef(err, "failed to read serial number from %s", addr)
	}
	dc.serial = sn
	glog.V(1).Infof("Connected to %s, S/N %d", addr, sn)
	return dc, nil
}

func (dc *TCPDevConn) SerialNumber() uint32 {
	return dc.serial
}

func (dc *TCPDevConn) Close() error {
	glog.V(1).Infof("Closing connection to %s", dc.addr)
	return dc.conn.Close()
}

func (dc *TCPDevConn) WriteReg(ctx context.Context, addr uint32, value uint32) error {
	pdu := make([]byte, 0, 10)
	pdu = append(pdu, fnWriteRegs)
	pdu = appendU16(pdu, uint16(addr))
	pdu = appendU16(pdu, 2) // two 16-bit registers per logical register
	pdu = append(pdu, 4)
	pdu = appendU32(pdu, value)
	resp, err := dc.roundTrip(ctx, pdu)
	if err != nil {
		return errors.Annotatef(err, "write reg %d", addr)
	}
	if len(resp) < 5 || resp[0] != fnWriteRegs {
		return errors.Errorf("write reg %d: unexpected response % x", addr, resp)
	}
	return nil
}

func (dc *TCPDevConn) WriteRegs(ctx context.Context, addrs []uint32, values []uint32) error {
	if len(addrs) != len(values) {
		return errors.Errorf("addrs/values length mismatch: %d vs %d", len(addrs), len(values))
	}
	frames := make([]Frame, len(addrs))
	for i, a := range addrs {
		frames[i] = Frame{Addr: a, Dir: DirWrite, Count: 1, Values: values[i : i+1]}
	}
	_, err := dc.RWRegs(ctx, frames)
	return errors.Trace(err)
}

func (dc *TCPDevConn) RWRegs(ctx context.Context, frames []Frame) ([]uint32, error) {
	pdu, nRead, err := buildFeedbackPDU(frames)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resp, err := dc.roundTrip(ctx, pdu)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return parseFeedbackResp(resp, nRead)
}

func (dc *TCPDevConn) ReadName(ctx context.Context, name string) (float64, error) {
	addr, isF32, err := ResolveName(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	v, err := dc.readU32(ctx, addr)
	if err != nil {
		return 0, errors.Annotatef(err, "read %s", name)
	}
	if isF32 {
		return float64(math.Float32frombits(v)), nil
	}
	return float64(v), nil
}

func (dc *TCPDevConn) readU32(ctx context.Context, addr uint32) (uint32, error) {
	pdu := make([]byte, 0, 5)
	pdu = append(pdu, fnReadRegs)
	pdu = appendU16(pdu, uint16(addr))
	pdu = appendU16(pdu, 2)
	resp, err := dc.roundTrip(ctx, pdu)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if len(resp) < 6 || resp[0] != fnReadRegs || resp[1] != 4 {
		return 0, errors.Errorf("read reg %d: unexpected response % x", addr, resp)
	}
	return binary.BigEndian.Uint32(resp[2:]), nil
}

func (dc *TCPDevConn) roundTrip(ctx context.Context, pdu []byte) ([]byte, error) {
	dc.txnID++
	deadline := time.Now().Add(defaultIOTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := dc.conn.SetDeadline(deadline); err != nil {
		return nil, errors.Trace(err)
	}
	req := make([]byte, 0, mbapHeaderLen+len(pdu))
	req = appendU16(req, dc.txnID)
	req = appendU16(req, 0) // protocol id
	req = appendU16(req, uint16(len(pdu)+1))
	req = append(req, unitID)
	req = append(req, pdu...)
	glog.V(3).Infof("-> % x", req)
	if _, err := dc.conn.Write(req); err != nil {
		return nil, errors.Annotatef(err, "link write failed")
	}
	var hdr [mbapHeaderLen]byte
	if _, err := io.ReadFull(dc.conn, hdr[:]); err != nil {
		return nil, errors.Annotatef(err, "link read failed")
	}
	txn := binary.BigEndian.Uint16(hdr[0:])
	n := int(binary.BigEndian.Uint16(hdr[4:]))
	if txn != dc.txnID || n < 2 {
		return nil, errors.Errorf("bad response header % x (txn %d)", hdr[:], dc.txnID)
	}
	resp := make([]byte, n-1) // unit id already counted in n
	if _, err := io.ReadFull(dc.conn, resp); err != nil {
		return nil, errors.Annotatef(err, "link read failed")
	}
	glog.V(3).Infof("<- % x", resp)
	if resp[0]&0x80 != 0 {
		return nil, errors.Errorf("device error: function 0x%02x exception 0x%02x", resp[0]&0x7f, resp[1])
	}
	return resp, nil
}

// buildFeedbackPDU encodes frames into a mixed-frame request. Per
// frame: direction byte (0 read, 1 write), 16-bit address, register
// count byte, then data for writes. Returns the total number of 32-bit
// values the read frames will produce.
func buildFeedbackPDU(frames []Frame) ([]byte, int, error) {
	pdu := []byte{fnFeedback}
	nRead := 0
	for i, f := range frames {
		if f.Count <= 0 || f.Count > t7.MaxChunkInts {
			return nil, 0, errors.Errorf("frame %d: bad count %d", i, f.Count)
		}
		switch f.Dir {
		case DirRead:
			pdu = append(pdu, 0)
			nRead += f.Count
		case DirWrite:
			pdu = append(pdu, 1)
			if len(f.Values) != f.Count {
				return nil, 0, errors.Errorf("frame %d: %d values for count %d", i, len(f.Values), f.Count)
			}
		}
		pdu = appendU16(pdu, uint16(f.Addr))
		pdu = append(pdu, byte(f.Count*2))
		if f.Dir == DirWrite {
			for _, v := range f.Values {
				pdu = appendU32(pdu, v)
			}
		}
	}
	return pdu, nRead, nil
}

func parseFeedbackResp(resp []byte, nRead int) ([]uint32, error) {
	if len(resp) < 1 || resp[0] != fnFeedback {
		return nil, errors.Errorf("unexpected response % x", resp)
	}
	if len(resp)-1 != nRead*4 {
		return nil, errors.Errorf("expected %d bytes of read data, got %d", nRead*4, len(resp)-1)
	}
	out := make([]uint32, nRead)
	for i := range out {
		out[i] = binary.BigEndian.Uint32(resp[1+i*4:])
	}
	return out, nil
}

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
