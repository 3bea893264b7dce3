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
package conffile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConf(t *testing.T, content string) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "t7up.yml")
	require.NoError(t, os.WriteFile(fname, []byte(content), 0644))
	return fname
}

func TestApplyFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addr := fs.String("addr", "", "")
	timeout := fs.Duration("timeout", 0, "")
	require.NoError(t, fs.Parse([]string{"--timeout=3s"}))

	fname := writeConf(t, "addr: 192.168.1.10\ntimeout: 7s\n")
	require.NoError(t, ApplyFlagSet(fs, fname))

	assert.Equal(t, "192.168.1.10", *addr)
	// The command line wins over the file.
	assert.Equal(t, "3s", timeout.String())
}

func TestApplyUnknownFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("addr", "", "")
	fname := writeConf(t, "no-such-flag: 1\n")
	assert.Error(t, ApplyFlagSet(fs, fname))
}

func TestApplyMissingFile(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	assert.NoError(t, ApplyFlagSet(fs, filepath.Join(t.TempDir(), "nope.yml")))
}
