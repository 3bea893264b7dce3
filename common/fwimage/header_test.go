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
package fwimage

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"math"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesanta/t7up/common/t7"
)

func testHeaderBytes() []byte {
	// Fill every byte so the round trip exercises the reserved areas
	// too, then overlay valid fields.
	data := make([]byte, t7.HeaderLength)
	for i := range data {
		data[i] = byte(i*37 + 11)
	}
	binary.BigEndian.PutUint32(data[t7.HdrOffHeaderCode:], t7.HeaderCode)
	binary.BigEndian.PutUint32(data[t7.HdrOffIntendedDevice:], t7.DeviceTypeT7)
	binary.BigEndian.PutUint32(data[t7.HdrOffContainedVersion:], math.Float32bits(1.0067))
	binary.BigEndian.PutUint32(data[t7.HdrOffRequiredUpgrader:], math.Float32bits(0.95))
	binary.BigEndian.PutUint16(data[t7.HdrOffImageNumber:], 0)
	binary.BigEndian.PutUint16(data[t7.HdrOffNumImgInFile:], 1)
	binary.BigEndian.PutUint32(data[t7.HdrOffStartNextImg:], 0)
	binary.BigEndian.PutUint32(data[t7.HdrOffLenOfImg:], 4096)
	binary.BigEndian.PutUint32(data[t7.HdrOffImgOffset:], 128)
	binary.BigEndian.PutUint32(data[t7.HdrOffNumBytesInSHA:], 32)
	binary.BigEndian.PutUint32(data[t7.HdrOffOptions:], 0x00010002)
	binary.BigEndian.PutUint32(data[t7.HdrOffEncryptedSHA:], 0xAABBCCDD)
	binary.BigEndian.PutUint32(data[t7.HdrOffUnencryptedSHA:], 0x11223344)
	binary.BigEndian.PutUint32(data[t7.HdrOffHeaderChecksum:], 0xFEEDF00D)
	return data
}

func TestParseHeaderFields(t *testing.T) {
	h, err := ParseHeader(testHeaderBytes())
	require.NoError(t, err)

	assert.Equal(t, t7.HeaderCode, h.HeaderCode)
	assert.Equal(t, t7.DeviceTypeT7, h.IntendedDevice)
	assert.Equal(t, "1.0067", h.ContainedVersionString())
	assert.Equal(t, "0.9500", h.RequiredUpgraderVersionString())
	assert.Equal(t, uint16(0), h.ImageNumber)
	assert.Equal(t, uint16(1), h.NumImgInFile)
	assert.Equal(t, uint32(4096), h.LenOfImg)
	assert.Equal(t, uint32(128), h.ImgOffset)
	assert.Equal(t, uint32(32), h.NumBytesInSHA)
	assert.Equal(t, uint32(0x00010002), h.Options)
	assert.Equal(t, uint32(0xAABBCCDD), h.EncryptedSHA)
	assert.Equal(t, uint32(0x11223344), h.UnencryptedSHA)
	assert.Equal(t, uint32(0xFEEDF00D), h.HeaderChecksum)
}

func TestHeaderRoundTrip(t *testing.T) {
	data := testHeaderBytes()
	h, err := ParseHeader(data)
	require.NoError(t, err)

	out := h.Serialize()
	if !bytes.Equal(data, out) {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(hex.Dump(data), hex.Dump(out), false)
		t.Fatalf("serialized header differs from the original:\n%s", dmp.DiffPrettyText(diffs))
	}
}

func TestParseHeaderWrongLength(t *testing.T) {
	_, err := ParseHeader(make([]byte, 64))
	assert.Error(t, err)
	_, err = ParseHeader(make([]byte, 256))
	assert.Error(t, err)
}
