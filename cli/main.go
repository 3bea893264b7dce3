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
// The t7up tool upgrades the firmware on LabJack T7 devices over the
// network.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/golang/glog"
	"github.com/juju/errors"
	flag "github.com/spf13/pflag"

	"github.com/cesanta/t7up/cli/flags"
	"github.com/cesanta/t7up/common/conffile"
	"github.com/cesanta/t7up/common/pflagenv"
	"github.com/cesanta/t7up/version"
)

const envPrefix = "T7UP_"

var (
	versionFlag = flag.Bool("version", false, "Print version and exit")
	helpFull    = flag.Bool("helpfull", false, "Show full help, including advanced flags")
)

type command struct {
	name     string
	handler  handler
	short    string
	required []string
	optional []string
}

type handler func(ctx context.Context) error

var commands = []command{
	{"upgrade", upgrade, `Upgrade device firmware from an image file`, []string{}, []string{"addr", "serial", "force", "enum-grace", "enum-timeout"}},
	{"info", info, `Print the header of a firmware image file`, []string{}, []string{}},
	{"list", list, `List reachable T7 devices`, []string{}, []string{"transport"}},
	{"fwversion", fwVersion, `Print the firmware version of a connected device`, []string{}, []string{"addr", "serial"}},
}

func run() error {
	if flag.NArg() == 0 {
		usage()
		return nil
	}
	for _, c := range commands {
		if c.name != flag.Arg(0) {
			continue
		}
		if err := checkFlags(c.required); err != nil {
			return errors.Trace(err)
		}
		return errors.Trace(c.handler(context.Background()))
	}
	usage()
	return nil
}

func confFilePath() string {
	if *flags.ConfFile != "" {
		return *flags.ConfFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".t7up.yml")
}

func main() {
	initFlags()
	flag.Parse()
	pflagenv.Parse(envPrefix)
	if fname := confFilePath(); fname != "" {
		if err := conffile.Apply(fname); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
			os.Exit(1)
		}
	}

	if *versionFlag {
		fmt.Printf("t7up %s (%s)\n", version.Version, version.BuildId)
		return
	}
	if *helpFull {
		unhideFlags()
		usage()
		return
	}

	if err := run(); err != nil {
		glog.Infof("Error: %+v", err)
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	glog.Flush()
}
