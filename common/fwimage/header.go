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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/juju/errors"

	"github.com/cesanta/t7up/common/t7"
)

// Header is the parsed view of the 128-byte image descriptor. All
// multi-byte fields are big-endian. Bytes not covered by a named field
// are reserved; they are retained verbatim so that Serialize
// round-trips the original descriptor.
type Header struct {
	HeaderCode              uint32
	IntendedDevice          uint32
	ContainedVersion        float32
	RequiredUpgraderVersion float32
	ImageNumber             uint16
	NumImgInFile            uint16
	StartNextImg            uint32
	LenOfImg                uint32
	ImgOffset               uint32
	NumBytesInSHA           uint32
	Options                 uint32
	EncryptedSHA            uint32
	UnencryptedSHA          uint32
	HeaderChecksum          uint32

	raw []byte
}

// ParseHeader parses the first t7.HeaderLength bytes of an image file.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) != t7.HeaderLength {
		return nil, errors.Errorf("header must be %d bytes, got %d", t7.HeaderLength, len(data))
	}
	h := &Header{raw: append([]byte(nil), data...)}
	h.HeaderCode = binary.BigEndian.Uint32(data[t7.HdrOffHeaderCode:])
	h.IntendedDevice = binary.BigEndian.Uint32(data[t7.HdrOffIntendedDevice:])
	h.ContainedVersion = math.Float32frombits(binary.BigEndian.Uint32(data[t7.HdrOffContainedVersion:]))
	h.RequiredUpgraderVersion = math.Float32frombits(binary.BigEndian.Uint32(data[t7.HdrOffRequiredUpgrader:]))
	h.ImageNumber = binary.BigEndian.Uint16(data[t7.HdrOffImageNumber:])
	h.NumImgInFile = binary.BigEndian.Uint16(data[t7.HdrOffNumImgInFile:])
	h.StartNextImg = binary.BigEndian.Uint32(data[t7.HdrOffStartNextImg:])
	h.LenOfImg = binary.BigEndian.Uint32(data[t7.HdrOffLenOfImg:])
	h.ImgOffset = binary.BigEndian.Uint32(data[t7.HdrOffImgOffset:])
	h.NumBytesInSHA = binary.BigEndian.Uint32(data[t7.HdrOffNumBytesInSHA:])
	h.Options = binary.BigEndian.Uint32(data[t7.HdrOffOptions:])
	h.EncryptedSHA = binary.BigEndian.Uint32(data[t7.HdrOffEncryptedSHA:])
	h.UnencryptedSHA = binary.BigEndian.Uint32(data[t7.HdrOffUnencryptedSHA:])
	h.HeaderChecksum = binary.BigEndian.Uint32(data[t7.HdrOffHeaderChecksum:])
	return h, nil
}

// Serialize encodes the header back into its 128-byte wire form.
// Reserved bytes keep the values they had when the header was parsed.
func (h *Header) Serialize() []byte {
	data := make([]byte, t7.HeaderLength)
	copy(data, h.raw)
	binary.BigEndian.PutUint32(data[t7.HdrOffHeaderCode:], h.HeaderCode)
	binary.BigEndian.PutUint32(data[t7.HdrOffIntendedDevice:], h.IntendedDevice)
	binary.BigEndian.PutUint32(data[t7.HdrOffContainedVersion:], math.Float32bits(h.ContainedVersion))
	binary.BigEndian.PutUint32(data[t7.HdrOffRequiredUpgrader:], math.Float32bits(h.RequiredUpgraderVersion))
	binary.BigEndian.PutUint16(data[t7.HdrOffImageNumber:], h.ImageNumber)
	binary.BigEndian.PutUint16(data[t7.HdrOffNumImgInFile:], h.NumImgInFile)
	binary.BigEndian.PutUint32(data[t7.HdrOffStartNextImg:], h.StartNextImg)
	binary.BigEndian.PutUint32(data[t7.HdrOffLenOfImg:], h.LenOfImg)
	binary.BigEndian.PutUint32(data[t7.HdrOffImgOffset:], h.ImgOffset)
	binary.BigEndian.PutUint32(data[t7.HdrOffNumBytesInSHA:], h.NumBytesInSHA)
	binary.BigEndian.PutUint32(data[t7.HdrOffOptions:], h.Options)
	binary.BigEndian.PutUint32(data[t7.HdrOffEncryptedSHA:], h.EncryptedSHA)
	binary.BigEndian.PutUint32(data[t7.HdrOffUnencryptedSHA:], h.UnencryptedSHA)
	binary.BigEndian.PutUint32(data[t7.HdrOffHeaderChecksum:], h.HeaderChecksum)
	return data
}

// ContainedVersionString returns the version declared inside the image,
// to four decimal places.
func (h *Header) ContainedVersionString() string {
	return VersionString(h.ContainedVersion)
}

// RequiredUpgraderVersionString returns the minimum upgrader version,
// to four decimal places.
func (h *Header) RequiredUpgraderVersionString() string {
	return VersionString(h.RequiredUpgraderVersion)
}

// VersionString renders a device version number the way the device
// reports it: four decimal places.
func VersionString(v float32) string {
	return fmt.Sprintf("%.4f", v)
}
