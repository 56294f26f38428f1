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

import (
	"strings"
	"testing"

	rspb "codepush.sh/codepush/pkg/release"
	"codepush.sh/codepush/pkg/time"
)

func TestLabelRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 10, 342} {
		label := FormatLabel(n)
		got, err := ParseLabel(label)
		if err != nil {
			t.Fatalf("ParseLabel(%q): %v", label, err)
		}
		if got != n {
			t.Errorf("ParseLabel(FormatLabel(%d)) = %d", n, got)
		}
	}
}

func TestParseLabelRejectsGarbage(t *testing.T) {
	for _, label := range []string{"", "v", "v0", "vx", "1", "version1"} {
		if _, err := ParseLabel(label); err == nil {
			t.Errorf("expected ParseLabel(%q) to fail", label)
		}
	}
}

func TestNextLabel(t *testing.T) {
	if got := NextLabel(0); got != "v1" {
		t.Errorf("NextLabel(0) = %q, want v1", got)
	}
	if got := NextLabel(4); got != "v5" {
		t.Errorf("NextLabel(4) = %q, want v5", got)
	}
}

func TestSortByUploadTime(t *testing.T) {
	mk := func(label string, ms int64) *rspb.Package {
		return &rspb.Package{Label: label, UploadTime: time.FromMillis(ms)}
	}
	history := []*rspb.Package{mk("v3", 300), mk("v1", 100), mk("v2", 200)}
	SortByUploadTime(history)
	var labels []string
	for _, p := range history {
		labels = append(labels, p.Label)
	}
	if got := strings.Join(labels, ","); got != "v1,v2,v3" {
		t.Errorf("unexpected order %s", got)
	}

	// Same-millisecond uploads fall back to label order.
	history = []*rspb.Package{mk("v2", 100), mk("v1", 100)}
	SortByUploadTime(history)
	if history[0].Label != "v1" {
		t.Errorf("expected label tiebreak, got %s first", history[0].Label)
	}
}

func TestReverse(t *testing.T) {
	mk := func(label string, ms int64) *rspb.Package {
		return &rspb.Package{Label: label, UploadTime: time.FromMillis(ms)}
	}
	history := []*rspb.Package{mk("v1", 100), mk("v3", 300), mk("v2", 200)}
	Reverse(history, SortByUploadTime)
	if history[0].Label != "v3" || history[2].Label != "v1" {
		t.Errorf("unexpected reversed order: %s..%s", history[0].Label, history[2].Label)
	}
}

func TestGenerateKey(t *testing.T) {
	k := GenerateDeploymentKey()
	if !strings.HasPrefix(k, "dk_") || len(k) != len("dk_")+32 {
		t.Errorf("unexpected deployment key %q", k)
	}
	a := GenerateAccessKey()
	if !strings.HasPrefix(a, "ck_") || len(a) != len("ck_")+32 {
		t.Errorf("unexpected access key %q", a)
	}
	if GenerateKey("") == GenerateKey("") {
		t.Error("keys must not repeat")
	}
}
