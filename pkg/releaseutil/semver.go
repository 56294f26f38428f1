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
	"regexp"

	"github.com/Masterminds/semver/v3"
)

var (
	majorOnly      = regexp.MustCompile(`^\d+$`)
	majorMinorOnly = regexp.MustCompile(`^(\d+)\.(\d+)([-+].*)?$`)
)

// NormalizeVersion widens the loose version strings mobile binaries report
// into full semver: "1" becomes "1.0.0" and "1.2" becomes "1.2.0", keeping
// any pre-release or build suffix in place. Anything else is returned
// unchanged.
func NormalizeVersion(v string) string {
	if majorOnly.MatchString(v) {
		return v + ".0.0"
	}
	if m := majorMinorOnly.FindStringSubmatch(v); m != nil {
		return m[1] + "." + m[2] + ".0" + m[3]
	}
	return v
}

// IsValidVersionField reports whether v is acceptable as a release's
// appVersion: a plain semver version or a semver range.
func IsValidVersionField(v string) bool {
	if _, err := semver.StrictNewVersion(NormalizeVersion(v)); err == nil {
		return true
	}
	if _, err := semver.NewConstraint(v); err == nil {
		return true
	}
	return false
}

// Satisfies reports whether version falls inside the given range. The range
// may also be a plain version, in which case the check is equality.
func Satisfies(version, rng string) bool {
	v, err := semver.NewVersion(NormalizeVersion(version))
	if err != nil {
		return false
	}
	if c, err := semver.NewConstraint(rng); err == nil {
		return c.Check(v)
	}
	if rv, err := semver.NewVersion(NormalizeVersion(rng)); err == nil {
		return rv.Equal(v)
	}
	return false
}

// HasPrerelease reports whether version carries a pre-release tag. The
// resolver admits pre-release binaries to any release so that internal
// builds always receive the newest code.
func HasPrerelease(version string) bool {
	v, err := semver.NewVersion(NormalizeVersion(version))
	if err != nil {
		return false
	}
	return v.Prerelease() != ""
}

// GreaterThanRange reports whether version is strictly newer than every
// version admitted by rng.
func GreaterThanRange(version, rng string) bool {
	v, err := semver.NewVersion(NormalizeVersion(version))
	if err != nil {
		return false
	}
	if c, err := semver.NewConstraint("> " + rangeUpper(rng)); err == nil {
		return c.Check(v)
	}
	return false
}

// rangeUpper picks a representative version out of rng for ordering
// comparisons. For plain versions it is the version itself; for ranges the
// normalized base version is enough for the resolver's "binary newer than
// the latest release" report.
func rangeUpper(rng string) string {
	if rv, err := semver.NewVersion(NormalizeVersion(rng)); err == nil {
		return rv.String()
	}
	// Strip range operators and keep the first version-looking token.
	m := regexp.MustCompile(`\d+(\.\d+)?(\.(\d+|x|\*))?`).FindString(rng)
	if m == "" {
		return "0.0.0"
	}
	return NormalizeVersion(regexp.MustCompile(`[x*]`).ReplaceAllString(m, "0"))
}

// RangesCompatible reports whether two appVersion fields address the same
// binary population: exact equality, or either side (as a plain version)
// satisfying the other (as a range). Diff archives are only generated
// between compatible releases.
func RangesCompatible(a, b string) bool {
	if a == b {
		return true
	}
	if _, err := semver.NewVersion(NormalizeVersion(a)); err == nil && Satisfies(a, b) {
		return true
	}
	if _, err := semver.NewVersion(NormalizeVersion(b)); err == nil && Satisfies(b, a) {
		return true
	}
	return false
}
