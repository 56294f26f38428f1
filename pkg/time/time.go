/*
Copyright The CodePush Server Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package time wraps time.Time with the wire and storage representation the
// CodePush protocol uses: integer milliseconds since the Unix epoch. Client
// SDKs and the legacy management API both exchange timestamps as numbers, so
// the wrapper marshals to millis and scans millis columns from SQL.
package time

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strconv"
	"time"
)

var null = []byte("null")

// Duration aliases the stdlib duration so callers working with this package
// do not need a second time import.
type Duration = time.Duration

// Common durations, re-exported for the same reason.
const (
	Millisecond = time.Millisecond
	Second      = time.Second
	Minute      = time.Minute
	Hour        = time.Hour
	Day         = 24 * time.Hour
)

// Time is a convenience wrapper around stdlib time that serializes as Unix
// milliseconds. The zero value marshals as null.
type Time struct {
	time.Time
}

// Now returns the current time, truncated to millisecond precision so that a
// round trip through the wire format is lossless.
func Now() Time {
	return FromMillis(time.Now().UnixMilli())
}

// FromMillis converts epoch milliseconds into a Time.
func FromMillis(ms int64) Time {
	return Time{time.UnixMilli(ms).UTC()}
}

// Add returns t shifted by d.
func (t Time) Add(d Duration) Time {
	return Time{t.Time.Add(d)}
}

// Millis reports t as epoch milliseconds. The zero time reports 0.
func (t Time) Millis() int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return null, nil
	}
	return strconv.AppendInt(nil, t.UnixMilli(), 10), nil
}

func (t *Time) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, null) || bytes.Equal(b, []byte(`""`)) {
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		// Tolerate RFC 3339 strings from older CLIs.
		return t.Time.UnmarshalJSON(b)
	}
	*t = FromMillis(ms)
	return nil
}

// Value implements driver.Valuer, storing epoch milliseconds.
func (t Time) Value() (driver.Value, error) {
	return t.Millis(), nil
}

// Scan implements sql.Scanner for BIGINT millisecond columns.
func (t *Time) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*t = Time{}
	case int64:
		*t = FromMillis(v)
	case time.Time:
		*t = Time{v.UTC()}
	default:
		return fmt.Errorf("cannot scan %T into time.Time", src)
	}
	return nil
}
