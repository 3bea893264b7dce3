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
// Package fwimage loads T7 firmware image files: a 128-byte big-endian
// descriptor followed by the firmware payload. The filename carries the
// release version as a decimal field equal to the version times 10000,
// e.g. T7_firmware_010067_2014-02-24.bin is version 1.0067.
package fwimage

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/t7up/common/t7"
)

// Image is the loaded firmware file: the verbatim descriptor bytes, the
// payload and the parsed views over them. It is the state bundle the
// upgrade pipeline threads through its stages.
type Image struct {
	// HeaderBytes is the descriptor exactly as read from the file; it is
	// later written to the header flash region.
	HeaderBytes []byte
	// ImageBytes is the payload; its length is a multiple of 4.
	ImageBytes []byte
	// Header is the parsed view of HeaderBytes.
	Header *Header
	// DeclaredVersion is the version encoded in the filename, to four
	// decimal places. It is the authoritative intended version: the
	// header's embedded version and the post-boot reported version are
	// both checked against it.
	DeclaredVersion string
}

// Load reads and parses a firmware .bin file.
func Load(fname string) (*Image, error) {
	data, err := os.ReadFile(fname)
	if err != nil {
		return nil, errors.Annotatef(err, "failed to read %s", fname)
	}
	if len(data) < t7.HeaderLength {
		return nil, errors.Errorf("%s: too short to contain an image header (%d bytes, need %d)",
			fname, len(data), t7.HeaderLength)
	}
	img := &Image{
		HeaderBytes: data[:t7.HeaderLength],
		ImageBytes:  data[t7.HeaderLength:],
	}
	if len(img.ImageBytes)%4 != 0 {
		return nil, errors.Errorf("%s: image payload length %d is not a multiple of 4",
			fname, len(img.ImageBytes))
	}
	img.Header, err = ParseHeader(img.HeaderBytes)
	if err != nil {
		return nil, errors.Trace(err)
	}
	img.DeclaredVersion, err = VersionFromFileName(fname)
	if err != nil {
		return nil, errors.Trace(err)
	}
	glog.V(1).Infof("Loaded %s: %d payload bytes, version %s (header declares %s)",
		fname, len(img.ImageBytes), img.DeclaredVersion, img.Header.ContainedVersionString())
	return img, nil
}

// VersionFromFileName extracts the release version from an image file
// name. The version field is the first underscore-delimited field that
// is all decimal digits; its value is the version times 10000.
func VersionFromFileName(fname string) (string, error) {
	base := filepath.Base(fname)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	for _, part := range strings.Split(base, "_") {
		if part == "" || !isAllDigits(part) {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return "", errors.Annotatef(err, "bad version field %q in %s", part, fname)
		}
		return fmt.Sprintf("%.4f", float64(n)/10000), nil
	}
	return "", errors.Errorf("no version field in file name %s", fname)
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
