/*
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

package cache

import (
	"context"

	"github.com/patrickmn/go-cache"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// UnavailableTargets stores scaling targets that recently refused an update because another one was in progress.
// Targets in the cache are skipped by the actuator until their entry expires.
type UnavailableTargets struct {
	// key: target name, value: reason
	cache *cache.Cache
}

func NewUnavailableTargets() *UnavailableTargets {
	return &UnavailableTargets{
		cache: cache.New(UnavailableTargetsTTL, DefaultCleanupInterval),
	}
}

func (u *UnavailableTargets) IsUnavailable(target string) bool {
	_, found := u.cache.Get(target)
	return found
}

// MarkUnavailable records the target. Marking an already cached target extends its TTL.
func (u *UnavailableTargets) MarkUnavailable(ctx context.Context, target, reason string) {
	log.FromContext(ctx).WithValues(
		"target", target,
		"unavailable-reason", reason,
		"unavailable-targets-ttl", UnavailableTargetsTTL).V(1).Info("skipping target until its update settles")
	u.cache.SetDefault(target, reason)
}

func (u *UnavailableTargets) Flush() {
	u.cache.Flush()
}
