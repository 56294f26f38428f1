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

package time

import (
	"encoding/json"
	"testing"
)

func TestMarshalMillis(t *testing.T) {
	ts := FromMillis(1559562508123)
	b, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "1559562508123" {
		t.Errorf("expected millis output, got %s", b)
	}
}

func TestMarshalZero(t *testing.T) {
	var ts Time
	b, err := json.Marshal(ts)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "null" {
		t.Errorf("expected null for zero time, got %s", b)
	}
}

func TestUnmarshal(t *testing.T) {
	var ts Time
	if err := json.Unmarshal([]byte("1559562508123"), &ts); err != nil {
		t.Fatal(err)
	}
	if ts.Millis() != 1559562508123 {
		t.Errorf("expected 1559562508123, got %d", ts.Millis())
	}

	var null Time
	if err := json.Unmarshal([]byte("null"), &null); err != nil {
		t.Fatal(err)
	}
	if !null.IsZero() {
		t.Errorf("expected zero time for null")
	}
}

func TestRoundTrip(t *testing.T) {
	now := Now()
	b, err := json.Marshal(now)
	if err != nil {
		t.Fatal(err)
	}
	var got Time
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Equal(now.Time) {
		t.Errorf("round trip mismatch: %v != %v", got, now)
	}
}

func TestScanValue(t *testing.T) {
	ts := FromMillis(42)
	v, err := ts.Value()
	if err != nil {
		t.Fatal(err)
	}
	var got Time
	if err := got.Scan(v); err != nil {
		t.Fatal(err)
	}
	if got.Millis() != 42 {
		t.Errorf("expected 42, got %d", got.Millis())
	}
}
