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
// Package t7 programs new firmware into a LabJack T7's external flash
// over the register link and reboots the device into it.
//
// Flash access goes through two cursor/window register pairs: writing
// the cursor register sets the flash byte address, and each access to
// the window register moves one 32-bit word while the device advances
// the cursor. Chunks therefore MUST be issued strictly one after
// another; overlapping transactions would trample the shared cursor.
package t7

import (
	"context"
	"encoding/binary"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/t7up/cli/dev"
	"github.com/cesanta/t7up/common/t7"
)

// readFlash reads lenInts 32-bit words starting at flash byte address
// start, chunkInts words per transaction. Results come back in flash
// address order.
func readFlash(ctx context.Context, dc dev.DevConn, start uint32, lenInts, chunkInts int) ([]uint32, error) {
	if err := checkOpArgs(start, chunkInts); err != nil {
		return nil, errors.Trace(err)
	}
	out := make([]uint32, 0, lenInts)
	addr := start
	for done := 0; done < lenInts; {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		cnt := lenInts - done
		if cnt > chunkInts {
			cnt = chunkInts
		}
		glog.V(2).Infof("read %d @ 0x%06x", cnt, addr)
		vals, err := dc.RWRegs(ctx, []dev.Frame{
			{Addr: t7.RegEXFpRead, Dir: dev.DirWrite, Count: 1, Values: []uint32{addr}},
			{Addr: t7.RegEXFRead, Dir: dev.DirRead, Count: cnt},
		})
		if err != nil {
			return nil, errors.Annotatef(err, "flash read %d @ 0x%06x", cnt, addr)
		}
		if len(vals) != cnt {
			return nil, errors.Errorf("flash read @ 0x%06x: expected %d words, got %d", addr, cnt, len(vals))
		}
		out = append(out, vals...)
		done += cnt
		addr += uint32(cnt) * 4
	}
	return out, nil
}

// writeFlash writes data (big-endian 32-bit words, len(data) = 4 *
// lenInts) starting at flash byte address start, chunkInts words per
// transaction. Every chunk unlocks the region with key first.
func writeFlash(ctx context.Context, dc dev.DevConn, key, start uint32, chunkInts int, data []byte) error {
	if err := checkOpArgs(start, chunkInts); err != nil {
		return errors.Trace(err)
	}
	if len(data)%4 != 0 {
		return errors.Errorf("write data length %d is not a multiple of 4", len(data))
	}
	lenInts := len(data) / 4
	addr := start
	for done := 0; done < lenInts; {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		cnt := lenInts - done
		if cnt > chunkInts {
			cnt = chunkInts
		}
		vals := make([]uint32, cnt)
		for i := range vals {
			vals[i] = binary.BigEndian.Uint32(data[(done+i)*4:])
		}
		glog.V(2).Infof("write %d @ 0x%06x", cnt, addr)
		if _, err := dc.RWRegs(ctx, []dev.Frame{
			{Addr: t7.RegEXFKey, Dir: dev.DirWrite, Count: 1, Values: []uint32{key}},
			{Addr: t7.RegEXFpWrite, Dir: dev.DirWrite, Count: 1, Values: []uint32{addr}},
			{Addr: t7.RegEXFWrite, Dir: dev.DirWrite, Count: cnt, Values: vals},
		}); err != nil {
			return errors.Annotatef(err, "flash write %d @ 0x%06x", cnt, addr)
		}
		done += cnt
		addr += uint32(cnt) * 4
	}
	return nil
}

func checkOpArgs(start uint32, chunkInts int) error {
	if start%4 != 0 {
		return errors.Errorf("flash address 0x%x is not word-aligned", start)
	}
	if chunkInts < 1 || chunkInts > t7.MaxChunkInts {
		return errors.Errorf("chunk size %d out of range (1..%d)", chunkInts, t7.MaxChunkInts)
	}
	return nil
}
