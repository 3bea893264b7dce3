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

	"github.com/juju/errors"

	"github.com/cesanta/t7up/cli/dev"
	"github.com/cesanta/t7up/common/fwimage"
	"github.com/cesanta/t7up/common/t7"
)

func writeImage(ctx context.Context, dc dev.DevConn, img *fwimage.Image) error {
	r := t7.ImageRegion
	if err := writeFlash(ctx, dc, r.Key, r.Base, r.BlockInts, img.ImageBytes); err != nil {
		return errors.Annotatef(errors.Wrap(err, ErrWriteFailure), "image region")
	}
	return nil
}

func writeHeader(ctx context.Context, dc dev.DevConn, img *fwimage.Image) error {
	r := t7.HeaderRegion
	if err := writeFlash(ctx, dc, r.Key, r.Base, r.BlockInts, img.HeaderBytes); err != nil {
		return errors.Annotatef(errors.Wrap(err, ErrWriteFailure), "header region")
	}
	return nil
}

// checkImageWrite reads the freshly written payload back and compares
// it word for word against the file.
func checkImageWrite(ctx context.Context, dc dev.DevConn, img *fwimage.Image) error {
	r := t7.ImageRegion
	lenInts := len(img.ImageBytes) / 4
	words, err := readFlash(ctx, dc, r.Base, lenInts, r.BlockInts)
	if err != nil {
		return errors.Annotatef(err, "image readback")
	}
	for i, got := range words {
		want := binary.BigEndian.Uint32(img.ImageBytes[i*4:])
		if got != want {
			return errors.Trace(&WriteVerifyError{WordIndex: i, Want: want, Got: got})
		}
	}
	return nil
}
