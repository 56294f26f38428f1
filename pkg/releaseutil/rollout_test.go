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

func TestHashCode(t *testing.T) {
	// Reference values computed with the client SDK's bucketing function.
	// These must never change.
	tests := []struct {
		in   string
		want int32
	}{
		{"", 0},
		{"c1H1", 2998679},
		{"clientAhash1", -1959522099},
		{"clientBhash1", -1930892948},
		{"device-123abcdef", 157677150},
	}
	for _, tt := range tests {
		if got := hashCode(tt.in); got != tt.want {
			t.Errorf("hashCode(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestIsSelectedForRollout(t *testing.T) {
	tests := []struct {
		clientID string
		hash     string
		rollout  int
		want     bool
	}{
		// bucket("clientBhash1") == 48
		{"clientB", "hash1", 49, true},
		{"clientB", "hash1", 48, false},
		// bucket("clientAhash1") == 99
		{"clientA", "hash1", 99, false},
		{"clientA", "hash1", 100, true},
		// bucket("device-123abcdef") == 50
		{"device-123", "abcdef", 50, false},
		{"device-123", "abcdef", 51, true},
		// Boundary percentages apply to every client.
		{"anyone", "anything", 0, false},
		{"anyone", "anything", 100, true},
	}
	for _, tt := range tests {
		got := IsSelectedForRollout(tt.clientID, tt.hash, tt.rollout)
		if got != tt.want {
			t.Errorf("IsSelectedForRollout(%q, %q, %d) = %v, want %v",
				tt.clientID, tt.hash, tt.rollout, got, tt.want)
		}
	}
}

func TestIsSelectedForRolloutDeterministic(t *testing.T) {
	first := IsSelectedForRollout("client-x", "deadbeef", 37)
	for i := 0; i < 10; i++ {
		if IsSelectedForRollout("client-x", "deadbeef", 37) != first {
			t.Fatal("rollout predicate is not deterministic")
		}
	}
}

func TestIsUnfinishedRollout(t *testing.T) {
	full := 100
	partial := 25
	if IsUnfinishedRollout(nil) {
		t.Error("nil rollout should be finished")
	}
	if IsUnfinishedRollout(&full) {
		t.Error("rollout of 100 should be finished")
	}
	if !IsUnfinishedRollout(&partial) {
		t.Error("rollout of 25 should be unfinished")
	}
}
