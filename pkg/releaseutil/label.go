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

// Package releaseutil holds the small pure helpers shared by the release
// engine and the update resolver: label arithmetic, history sorting, semver
// handling, rollout bucketing, and key generation.
package releaseutil

import (
	"fmt"
	"strconv"
	"strings"

	"codepush.sh/codepush/pkg/errs"
)

// FormatLabel renders the label of the n-th release of a deployment.
// Labels are assigned v1, v2, ... in commit order.
func FormatLabel(n int) string {
	return fmt.Sprintf("v%d", n)
}

// ParseLabel extracts the numeric part of a label.
func ParseLabel(label string) (int, error) {
	rest, ok := strings.CutPrefix(label, "v")
	if !ok {
		return 0, errs.ErrInvalid("invalid label %q", label)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, errs.ErrInvalid("invalid label %q", label)
	}
	return n, nil
}

// NextLabel computes the label for a new release given the count of live
// releases already committed.
func NextLabel(liveCount int) string {
	return FormatLabel(liveCount + 1)
}
