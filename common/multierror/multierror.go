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
package multierror

import (
	"fmt"
	"strings"
)

// Error collects several errors behind one error value. Used to report
// all flag-validation problems at once instead of one per run.
type Error struct {
	errs []error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d error(s) occurred:", len(e.errs))
	for _, err := range e.errs {
		fmt.Fprintf(&b, "\n%s", err)
	}
	return b.String()
}

// Errors returns the collected errors.
func (e *Error) Errors() []error {
	return e.errs
}

// Append adds errs to err, promoting err to an *Error if needed.
// err may be nil or any plain error.
func Append(err error, errs ...error) error {
	switch err := err.(type) {
	case nil:
		return &Error{errs}
	case *Error:
		err.errs = append(err.errs, errs...)
		return err
	default:
		return &Error{append([]error{err}, errs...)}
	}
}
