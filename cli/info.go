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
package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/cesanta/t7up/common/fwimage"
)

func info(ctx context.Context) error {
	if flag.NArg() != 2 {
		return errors.Errorf("image file is required")
	}
	img, err := fwimage.Load(flag.Arg(1))
	if err != nil {
		return errors.Trace(err)
	}
	h := img.Header
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "Header code:\t0x%08x\n", h.HeaderCode)
	fmt.Fprintf(w, "Intended device:\t0x%08x\n", h.IntendedDevice)
	fmt.Fprintf(w, "Version:\t%s (file name says %s)\n", h.ContainedVersionString(), img.DeclaredVersion)
	fmt.Fprintf(w, "Requires upgrader:\t%s\n", h.RequiredUpgraderVersionString())
	fmt.Fprintf(w, "Image:\t%d of %d in file\n", h.ImageNumber, h.NumImgInFile)
	fmt.Fprintf(w, "Payload:\t%d bytes @ offset %d\n", h.LenOfImg, h.ImgOffset)
	fmt.Fprintf(w, "SHA region:\t%d bytes\n", h.NumBytesInSHA)
	fmt.Fprintf(w, "Options:\t0x%08x\n", h.Options)
	fmt.Fprintf(w, "Header checksum:\t0x%08x\n", h.HeaderChecksum)
	return errors.Trace(w.Flush())
}
