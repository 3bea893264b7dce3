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
	"strings"
	"time"

	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/cesanta/t7up/cli/dev"
	"github.com/cesanta/t7up/cli/flags"
	t7flash "github.com/cesanta/t7up/cli/flash/t7"
	"github.com/cesanta/t7up/cli/ourutil"
	"github.com/cesanta/t7up/common/fwimage"
)

func upgrade(ctx context.Context) error {
	if flag.NArg() != 2 {
		return errors.Errorf("image file is required")
	}
	img, err := fwimage.Load(flag.Arg(1))
	if err != nil {
		return errors.Trace(err)
	}

	enum := &dev.TCPEnumerator{}
	dc, err := openDevice(ctx, enum)
	if err != nil {
		return errors.Trace(err)
	}

	if !*flags.Force {
		ans := ourutil.Prompt("This will erase and reprogram the device's firmware flash. Continue? [y/N]")
		if strings.ToLower(ans) != "y" && strings.ToLower(ans) != "yes" {
			dc.Close()
			return errors.Errorf("aborted by the operator")
		}
	}

	// Upgrade owns the handle from here on, including the reopened one.
	return errors.Trace(t7flash.Upgrade(ctx, dc, enum, img, &t7flash.UpgradeOpts{
		EnumGrace:   *flags.EnumGrace,
		EnumTimeout: enumTimeout(),
		Transport:   *flags.Transport,
	}))
}

// The flag uses 0 for "wait forever"; UpgradeOpts uses negative for
// that and 0 for the default.
func enumTimeout() time.Duration {
	if *flags.EnumTimeout == 0 {
		return -1
	}
	return *flags.EnumTimeout
}
