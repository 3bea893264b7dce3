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
	"fmt"

	"github.com/juju/errors"
)

// Each way the pipeline can refuse or fail has its own error so the
// operator can see which check tripped. Wrapped causes are preserved;
// test with errors.Cause.
var (
	ErrInvalidHeaderCode   = errors.New("file header code does not mark a T7 image")
	ErrIncorrectDeviceType = errors.New("image is built for a different device type")
	ErrIncorrectVersion    = errors.New("image version does not match the file name")
	ErrUpgraderTooOld      = errors.New("image requires a newer upgrader")
	ErrEraseFailure        = errors.New("flash erase failed")
	ErrWriteFailure        = errors.New("flash write failed")
	ErrRebootFailure       = errors.New("failed to request firmware upgrade reboot")
	ErrEnumerationTimeout  = errors.New("device did not re-enumerate in time")
	ErrVersionMismatch     = errors.New("device reports a different firmware version after reboot")
)

// EraseVerifyError reports the first word that did not read back as
// erased.
type EraseVerifyError struct {
	Region string
	Addr   uint32
	Got    uint32
}

func (e *EraseVerifyError) Error() string {
	return fmt.Sprintf("%s region not erased: word @ 0x%06x reads 0x%08x", e.Region, e.Addr, e.Got)
}

// WriteVerifyError reports the first image word whose readback did not
// match what was written.
type WriteVerifyError struct {
	WordIndex int
	Want, Got uint32
}

func (e *WriteVerifyError) Error() string {
	return fmt.Sprintf("image verification failed at word %d: wrote 0x%08x, read 0x%08x",
		e.WordIndex, e.Want, e.Got)
}
