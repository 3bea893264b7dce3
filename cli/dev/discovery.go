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
	"fmt"
	"math"
	"net"
	"sort"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/t7up/common/t7"
)

const discoveryWindow = 1 * time.Second

// TCPEnumerator discovers T7s on the local network. Devices listen for
// register reads on a UDP discovery port; a broadcast read of the
// serial number and firmware version makes every reachable unit
// identify itself.
type TCPEnumerator struct {
	// Broadcast overrides the probe destination, for tests and routed
	// networks. Empty means the all-ones broadcast address.
	Broadcast string
}

func (e *TCPEnumerator) probeAddr() string {
	if e.Broadcast != "" {
		return e.Broadcast
	}
	return fmt.Sprintf("255.255.255.255:%d", t7.DiscoveryPort)
}

func (e *TCPEnumerator) ListAll(ctx context.Context, devType, transport string) ([]DeviceInfo, error) {
	if devType != TypeT7 {
		return nil, errors.Errorf("unsupported device type %q", devType)
	}
	if transport != TransportEthernet {
		return nil, errors.Errorf("unsupported transport %q", transport)
	}
	raddr, err := net.ResolveUDPAddr("udp4", e.probeAddr())
	if err != nil {
		return nil, errors.Trace(err)
	}
	sock, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to open discovery socket")
	}
	defer sock.Close()

	pdu, nRead, err := buildFeedbackPDU([]Frame{
		{Addr: t7.RegSerialNumber, Dir: DirRead, Count: 1},
		{Addr: t7.RegFirmwareVersion, Dir: DirRead, Count: 1},
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	req := make([]byte, 0, mbapHeaderLen+len(pdu))
	req = appendU16(req, 0xBEEF)
	req = appendU16(req, 0)
	req = appendU16(req, uint16(len(pdu)+1))
	req = append(req, unitID)
	req = append(req, pdu...)
	if _, err := sock.WriteToUDP(req, raddr); err != nil {
		return nil, errors.Annotatef(err, "discovery probe failed")
	}

	deadline := time.Now().Add(discoveryWindow)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	sock.SetReadDeadline(deadline)

	var devs []DeviceInfo
	buf := make([]byte, 512)
	for {
		n, from, err := sock.ReadFromUDP(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				break
			}
			return nil, errors.Annotatef(err, "discovery read failed")
		}
		if n < mbapHeaderLen+1 {
			continue
		}
		vals, err := parseFeedbackResp(buf[mbapHeaderLen:n], nRead)
		if err != nil {
			glog.V(1).Infof("Ignoring malformed discovery response from %s: %s", from, err)
			continue
		}
		devs = append(devs, DeviceInfo{
			Serial:          vals[0],
			Addr:            from.IP.String(),
			FirmwareVersion: float64(math.Float32frombits(vals[1])),
		})
		glog.V(1).Infof("Found T7 S/N %d at %s", vals[0], from.IP)
	}
	sort.Slice(devs, func(i, j int) bool { return devs[i].Serial < devs[j].Serial })
	return devs, nil
}

func (e *TCPEnumerator) OpenByType(ctx context.Context, devType, transport string, serial uint32) (DevConn, error) {
	devs, err := e.ListAll(ctx, devType, transport)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, d := range devs {
		if d.Serial != serial {
			continue
		}
		dc, err := DialTCP(ctx, d.Addr)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if dc.SerialNumber() != serial {
			dc.Close()
			return nil, errors.Errorf("device at %s reports S/N %d, want %d", d.Addr, dc.SerialNumber(), serial)
		}
		return dc, nil
	}
	return nil, errors.Errorf("no %s with S/N %d found", devType, serial)
}
