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
package flags

import (
	"time"

	flag "github.com/spf13/pflag"
)

var (
	Addr        = flag.String("addr", "", "Device IP address or host:port. If empty, the device is found by discovery")
	Serial      = flag.Uint32("serial", 0, "Device serial number. Required when more than one T7 is reachable")
	Transport   = flag.String("transport", "ethernet", "Device transport")
	Timeout     = flag.Duration("timeout", 10*time.Second, "Timeout for finding and connecting to the device")
	EnumGrace   = flag.Duration("enum-grace", 5*time.Second, "Delay before and between post-reboot enumeration scans")
	EnumTimeout = flag.Duration("enum-timeout", 10*time.Minute, "Give up waiting for the device to re-enumerate after this long. 0 means wait forever")
	Force       = flag.Bool("force", false, "Do not ask for confirmation before erasing the device")
	ConfFile    = flag.String("conf-file", "", "YAML file with flag defaults. Defaults to ~/.t7up.yml")
)
