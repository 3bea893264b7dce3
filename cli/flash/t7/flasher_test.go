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
	"encoding/binary"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesanta/t7up/cli/dev"
	"github.com/cesanta/t7up/common/t7"
)

func TestReadFlashChunking(t *testing.T) {
	d := newFakeDev(1)
	vals, err := readFlash(context.Background(), d, 0, 3, 2)
	require.NoError(t, err)
	require.Len(t, vals, 3)

	require.Len(t, d.rwCalls, 2)
	assert.Equal(t, []dev.Frame{
		{Addr: t7.RegEXFpRead, Dir: dev.DirWrite, Count: 1, Values: []uint32{0}},
		{Addr: t7.RegEXFRead, Dir: dev.DirRead, Count: 2},
	}, d.rwCalls[0])
	assert.Equal(t, []dev.Frame{
		{Addr: t7.RegEXFpRead, Dir: dev.DirWrite, Count: 1, Values: []uint32{8}},
		{Addr: t7.RegEXFRead, Dir: dev.DirRead, Count: 1},
	}, d.rwCalls[1])
}

func TestReadFlashCursorProgression(t *testing.T) {
	d := newFakeDev(1)
	_, err := readFlash(context.Background(), d, 0x1000, 20, 8)
	require.NoError(t, err)

	// ceil(20/8) transactions, cursors an arithmetic progression of
	// stride chunk*4.
	require.Len(t, d.rwCalls, 3)
	var cursors []uint32
	for _, call := range d.rwCalls {
		cursors = append(cursors, call[0].Values[0])
	}
	assert.Equal(t, []uint32{0x1000, 0x1020, 0x1040}, cursors)
	assert.Equal(t, 4, d.rwCalls[2][1].Count)
}

func TestWriteFlashFrameShape(t *testing.T) {
	d := newFakeDev(1)
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04}
	require.NoError(t, writeFlash(context.Background(), d, 0x1234, 0x2000, 8, data))

	require.Len(t, d.rwCalls, 1)
	assert.Equal(t, []dev.Frame{
		{Addr: t7.RegEXFKey, Dir: dev.DirWrite, Count: 1, Values: []uint32{0x1234}},
		{Addr: t7.RegEXFpWrite, Dir: dev.DirWrite, Count: 1, Values: []uint32{0x2000}},
		{Addr: t7.RegEXFWrite, Dir: dev.DirWrite, Count: 2, Values: []uint32{0xDEADBEEF, 0x01020304}},
	}, d.rwCalls[0])
}

func TestWriteReadRoundTrip(t *testing.T) {
	d := newFakeDev(1)
	data := make([]byte, 25*4)
	for i := range data {
		data[i] = byte(i * 13)
	}
	require.NoError(t, writeFlash(context.Background(), d, 0x1234, 0x3000, 7, data))

	vals, err := readFlash(context.Background(), d, 0x3000, 25, 8)
	require.NoError(t, err)
	require.Len(t, vals, 25)
	for i, v := range vals {
		assert.Equal(t, binary.BigEndian.Uint32(data[i*4:]), v, "word %d", i)
	}
}

func TestFlashOpArgChecks(t *testing.T) {
	d := newFakeDev(1)
	_, err := readFlash(context.Background(), d, 2, 1, 1)
	assert.Error(t, err, "unaligned address")
	_, err = readFlash(context.Background(), d, 0, 1, 0)
	assert.Error(t, err, "zero chunk")
	_, err = readFlash(context.Background(), d, 0, 1, t7.MaxChunkInts+1)
	assert.Error(t, err, "chunk over the transaction cap")
	assert.Equal(t, 0, d.transactions())

	err = writeFlash(context.Background(), d, 1, 0, 8, []byte{1, 2, 3})
	assert.Error(t, err, "data not a multiple of 4")
	assert.Equal(t, 0, d.transactions())
}

func TestFlashOpCancellation(t *testing.T) {
	d := newFakeDev(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := readFlash(ctx, d, 0, 8, 8)
	assert.Equal(t, context.Canceled, errors.Cause(err))
	assert.Equal(t, 0, d.transactions())
}
