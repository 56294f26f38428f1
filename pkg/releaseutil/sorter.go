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
	"sort"

	rspb "codepush.sh/codepush/pkg/release"
)

type list []*rspb.Package

func (s list) Len() int      { return len(s) }
func (s list) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

// ByUploadTime sorts packages by upload time, oldest first.
type ByUploadTime struct{ list }

// Less compares two packages by upload instant, breaking ties by label so
// ordering stays total when two releases land in the same millisecond.
func (s ByUploadTime) Less(i, j int) bool {
	ti := s.list[i].UploadTime.Millis()
	tj := s.list[j].UploadTime.Millis()
	if ti != tj {
		return ti < tj
	}
	return labelNum(s.list[i].Label) < labelNum(s.list[j].Label)
}

// ByLabel sorts packages by their numeric label, v1 first.
type ByLabel struct{ list }

// Less compares two packages by label number.
func (s ByLabel) Less(i, j int) bool {
	return labelNum(s.list[i].Label) < labelNum(s.list[j].Label)
}

func labelNum(label string) int {
	n, err := ParseLabel(label)
	if err != nil {
		return 0
	}
	return n
}

// SortByUploadTime sorts the history ascending by upload time.
func SortByUploadTime(packages []*rspb.Package) {
	sort.Sort(ByUploadTime{packages})
}

// SortByLabel sorts the history ascending by label number.
func SortByLabel(packages []*rspb.Package) {
	sort.Sort(ByLabel{packages})
}

// Reverse reverses the list of packages sorted by the sort func.
func Reverse(packages []*rspb.Package, sortFn func([]*rspb.Package)) {
	sortFn(packages)
	for i, j := 0, len(packages)-1; i < j; i, j = i+1, j-1 {
		packages[i], packages[j] = packages[j], packages[i]
	}
}
