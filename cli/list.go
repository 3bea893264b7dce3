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

	"github.com/juju/errors"

	"github.com/cesanta/t7up/cli/dev"
	"github.com/cesanta/t7up/cli/flags"
	"github.com/cesanta/t7up/common/t7"
)

func list(ctx context.Context) error {
	enum := &dev.TCPEnumerator{}
	devs, err := enum.ListAll(ctx, dev.TypeT7, *flags.Transport)
	if err != nil {
		return errors.Trace(err)
	}
	for _, d := range devs {
		fmt.Printf("%s %d %s %.4f\n", dev.TypeT7, d.Serial, d.Addr, d.FirmwareVersion)
	}
	return nil
}

func fwVersion(ctx context.Context) error {
	enum := &dev.TCPEnumerator{}
	dc, err := openDevice(ctx, enum)
	if err != nil {
		return errors.Trace(err)
	}
	defer dc.Close()
	v, err := dc.ReadName(ctx, t7.RegNameFirmwareVersion)
	if err != nil {
		return errors.Trace(err)
	}
	fmt.Printf("%.4f\n", v)
	return nil
}
