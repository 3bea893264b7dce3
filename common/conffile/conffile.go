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
// Package conffile applies a YAML defaults file to flags. Precedence
// is command line, then environment, then the file.
package conffile

import (
	"os"

	"github.com/golang/glog"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	yaml "gopkg.in/yaml.v2"
)

// ApplyFlagSet reads fname (flag names mapped to values) and sets
// every flag in fs that is still unset. A missing file is not an
// error; unknown keys are.
func ApplyFlagSet(fs *pflag.FlagSet, fname string) error {
	data, err := os.ReadFile(fname)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Annotatef(err, "failed to read %s", fname)
	}
	var vals map[string]string
	if err := yaml.Unmarshal(data, &vals); err != nil {
		return errors.Annotatef(err, "failed to parse %s", fname)
	}
	set := make(map[string]bool)
	fs.Visit(func(f *pflag.Flag) {
		set[f.Name] = true
	})
	for name, v := range vals {
		f := fs.Lookup(name)
		if f == nil {
			return errors.Errorf("%s: unknown flag %q", fname, name)
		}
		if set[name] || f.Changed {
			continue
		}
		if err := f.Value.Set(v); err != nil {
			return errors.Annotatef(err, "%s: bad value for %q", fname, name)
		}
		f.Changed = true
		glog.V(1).Infof("%s: --%s=%s", fname, name, v)
	}
	return nil
}

// Apply is ApplyFlagSet on pflag.CommandLine.
func Apply(fname string) error {
	return ApplyFlagSet(pflag.CommandLine, fname)
}
