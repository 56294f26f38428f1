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

package releaseutil

import "testing"

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1.0.0"},
		{"1.0", "1.0.0"},
		{"1.2", "1.2.0"},
		{"1.0+build", "1.0.0+build"},
		{"1.2-beta", "1.2.0-beta"},
		{"1.2.3", "1.2.3"},
		{"1.2.3-rc.1", "1.2.3-rc.1"},
		{"not-a-version", "not-a-version"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeVersion(tt.in); got != tt.want {
			t.Errorf("NormalizeVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSatisfies(t *testing.T) {
	tests := []struct {
		version string
		rng     string
		want    bool
	}{
		{"1.0.0", "1.0.0", true},
		{"1.0.0", "1.0.1", false},
		{"1.2.3", "~1.2.0", true},
		{"1.3.0", "~1.2.0", false},
		{"1.9.9", "^1.2.0", true},
		{"2.0.0", "^1.2.0", false},
		{"1.5.0", ">=1.0.0 <2.0.0", true},
		{"1", "1.0.0", true},
		{"1.0", "1.x", true},
		{"2.0", "1.x", false},
		{"garbage", "1.0.0", false},
	}
	for _, tt := range tests {
		if got := Satisfies(tt.version, tt.rng); got != tt.want {
			t.Errorf("Satisfies(%q, %q) = %v, want %v", tt.version, tt.rng, got, tt.want)
		}
	}
}

func TestIsValidVersionField(t *testing.T) {
	valid := []string{"1.0.0", "1.0", "1", "~1.2.0", "^1.0.0", "1.x", ">=1.0.0 <2.0.0"}
	for _, v := range valid {
		if !IsValidVersionField(v) {
			t.Errorf("expected %q to be a valid appVersion", v)
		}
	}
	invalid := []string{"", "abc", "1.2.3.4.5junk"}
	for _, v := range invalid {
		if IsValidVersionField(v) {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}

func TestHasPrerelease(t *testing.T) {
	if !HasPrerelease("1.0.0-beta.1") {
		t.Error("expected prerelease tag to be detected")
	}
	if HasPrerelease("1.0.0+build.5") {
		t.Error("build metadata is not a prerelease tag")
	}
	if HasPrerelease("1.0.0") {
		t.Error("plain version has no prerelease tag")
	}
}

func TestRangesCompatible(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1.0.0", "1.0.0", true},
		{"~1.2.0", "~1.2.0", true},
		{"1.2.3", "~1.2.0", true},
		{"~1.2.0", "1.2.3", true},
		{"1.0.0", "2.0.0", false},
		{"1.3.0", "~1.2.0", false},
	}
	for _, tt := range tests {
		if got := RangesCompatible(tt.a, tt.b); got != tt.want {
			t.Errorf("RangesCompatible(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
