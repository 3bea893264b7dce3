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

	"github.com/golang/glog"
	"github.com/juju/errors"

	"github.com/cesanta/t7up/cli/dev"
	"github.com/cesanta/t7up/common/t7"
)

// erasePages erases the region one page at a time. Each page takes a
// key write and an erase-address write in a single transaction.
func erasePages(ctx context.Context, dc dev.DevConn, name string, r t7.Region) error {
	for i := uint32(0); i < r.Pages; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		addr := r.Base + i*t7.FlashPageSize
		glog.V(1).Infof("erase page @ 0x%06x", addr)
		err := dc.WriteRegs(ctx,
			[]uint32{t7.RegEXFKey, t7.RegEXFErase},
			[]uint32{r.Key, addr})
		if err != nil {
			return errors.Annotatef(errors.Wrap(err, ErrEraseFailure),
				"%s region page @ 0x%06x", name, addr)
		}
	}
	return nil
}

func eraseImage(ctx context.Context, dc dev.DevConn) error {
	return erasePages(ctx, dc, "image", t7.ImageRegion)
}

func eraseHeader(ctx context.Context, dc dev.DevConn) error {
	return erasePages(ctx, dc, "header", t7.HeaderRegion)
}

// checkErase reads the header region and then the image region back
// and verifies every word is erased (0xFFFFFFFF).
func checkErase(ctx context.Context, dc dev.DevConn) error {
	for _, reg := range []struct {
		name string
		r    t7.Region
	}{
		{"header", t7.HeaderRegion},
		{"image", t7.ImageRegion},
	} {
		words, err := readFlash(ctx, dc, reg.r.Base, reg.r.Words(), reg.r.BlockInts)
		if err != nil {
			return errors.Annotatef(err, "%s region erase check", reg.name)
		}
		for i, w := range words {
			if w != t7.EraseFill {
				return errors.Trace(&EraseVerifyError{
					Region: reg.name,
					Addr:   reg.r.Base + uint32(i)*4,
					Got:    w,
				})
			}
		}
	}
	return nil
}
