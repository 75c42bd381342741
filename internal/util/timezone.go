package util

import (
	"sync"
	"time"
)

var locationCache sync.Map

// LoadLocation resolves an IANA zone name, caching the result. ok is false when the
// name is unknown, in which case fallback (or UTC) is returned.
func LoadLocation(name string, fallback *time.Location) (loc *time.Location, ok bool) {
	if fallback == nil {
		fallback = time.UTC
	}
	if name == "" {
		return fallback, true
	}
	if cached, hit := locationCache.Load(name); hit {
		return cached.(*time.Location), true
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback, false
	}
	locationCache.Store(name, loc)
	return loc, true
}
