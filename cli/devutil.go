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

	"github.com/juju/errors"

	"github.com/cesanta/t7up/cli/dev"
	"github.com/cesanta/t7up/cli/flags"
	"github.com/cesanta/t7up/cli/ourutil"
)

// openDevice opens the target device: directly when --addr is given,
// through discovery otherwise. With several devices reachable,
// --serial picks one.
func openDevice(ctx context.Context, enum dev.Enumerator) (dev.DevConn, error) {
	ctx, cancel := context.WithTimeout(ctx, *flags.Timeout)
	defer cancel()
	if *flags.Addr != "" {
		dc, err := dev.DialTCP(ctx, *flags.Addr)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if *flags.Serial != 0 && dc.SerialNumber() != *flags.Serial {
			sn := dc.SerialNumber()
			dc.Close()
			return nil, errors.Errorf("device at %s has S/N %d, want %d", *flags.Addr, sn, *flags.Serial)
		}
		return dc, nil
	}
	devs, err := enum.ListAll(ctx, dev.TypeT7, *flags.Transport)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(devs) == 0 {
		return nil, errors.Errorf("no T7 devices found; specify --addr to connect directly")
	}
	serial := *flags.Serial
	if serial == 0 {
		if len(devs) > 1 {
			for _, d := range devs {
				ourutil.Reportf("  S/N %d at %s", d.Serial, d.Addr)
			}
			return nil, errors.Errorf("%d devices found, pick one with --serial", len(devs))
		}
		serial = devs[0].Serial
	}
	dc, err := enum.OpenByType(ctx, dev.TypeT7, *flags.Transport, serial)
	return dc, errors.Trace(err)
}
