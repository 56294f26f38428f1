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

// hashCode computes the 32-bit string hash historically used by client SDKs
// to bucket devices: h = ((h << 5) - h) + codepoint, with signed 32-bit
// wrap-around. It must stay bit-exact across server implementations or
// devices would flip in and out of partial rollouts.
func hashCode(s string) int32 {
	var h int32
	for _, r := range s {
		h = (h << 5) - h + int32(r)
	}
	return h
}

// IsSelectedForRollout reports whether the device identified by clientID is
// inside a rollout percentage for the release identified by packageHash.
// The bucket is stable per (clientID, packageHash).
func IsSelectedForRollout(clientID, packageHash string, rollout int) bool {
	if rollout >= 100 {
		return true
	}
	if rollout <= 0 {
		return false
	}
	bucket := int64(hashCode(clientID + packageHash))
	if bucket < 0 {
		bucket = -bucket
	}
	return bucket%100 < int64(rollout)
}

// IsUnfinishedRollout reports whether a rollout value denotes a partial
// rollout still in progress.
func IsUnfinishedRollout(rollout *int) bool {
	return rollout != nil && *rollout < 100
}
