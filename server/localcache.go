package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxLimiters 超过后清空重建
const maxLimiters = 10000

// localcache 缓存每个客户端的限流器
type localcache struct {
	lock  sync.Mutex
	cache map[string]*rate.Limiter
	limit rate.Limit
	burst int
}

func newLocalcache(limit rate.Limit, burst int) *localcache {
	return &localcache{
		cache: make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
	}
}

func (local *localcache) get(key string) *rate.Limiter {
	local.lock.Lock()
	defer local.lock.Unlock()

	if l, ok := local.cache[key]; ok {
		return l
	}
	if len(local.cache) >= maxLimiters {
		local.cache = make(map[string]*rate.Limiter)
	}
	l := rate.NewLimiter(local.limit, local.burst)
	local.cache[key] = l
	return l
}

func (local *localcache) len() int {
	local.lock.Lock()
	defer local.lock.Unlock()
	return len(local.cache)
}
