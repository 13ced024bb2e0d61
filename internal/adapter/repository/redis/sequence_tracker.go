package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MaxTrackedGap bounds how many skipped sequences one jump records.
const MaxTrackedGap = 1024

// advanceScript keeps the high-water mark in KEYS[1] and the sequences
// skipped below it in the set KEYS[2]. It returns 1 when ARGV[1] is above
// the mark or fills a recorded gap, and 0 when it was seen before.
var advanceScript = redis.NewScript(`
local cur = tonumber(redis.call('GET', KEYS[1]) or '0')
local seq = tonumber(ARGV[1])
local ttl = ARGV[2]
if seq > cur then
	if cur > 0 and seq > cur + 1 then
		local from = cur + 1
		local limit = tonumber(ARGV[3])
		if seq - from > limit then
			from = seq - limit
		end
		for s = from, seq - 1 do
			redis.call('SADD', KEYS[2], tostring(s))
		end
		redis.call('PEXPIRE', KEYS[2], ttl)
	end
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ttl)
	return 1
end
if redis.call('SREM', KEYS[2], ARGV[1]) == 1 then
	return 1
end
return 0
`)

// SequenceTracker is a domain.SequenceTracker shared by every notifier
// replica through Redis.
type SequenceTracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSequenceTracker creates a tracker storing high-water marks under
// "<prefix>seq:<scope>" and skipped sequences under "<prefix>seq:<scope>:gaps",
// both kept for ttl after the last advance.
func NewSequenceTracker(client *redis.Client, prefix string, ttl time.Duration) *SequenceTracker {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SequenceTracker{client: client, prefix: prefix, ttl: ttl}
}

func (t *SequenceTracker) Advance(ctx context.Context, scopeID string, seq int64) (bool, error) {
	key := t.prefix + "seq:" + scopeID
	fresh, err := advanceScript.Run(ctx, t.client, []string{key, key + ":gaps"}, seq, t.ttl.Milliseconds(), MaxTrackedGap).Int()
	if err != nil {
		return false, fmt.Errorf("advance sequence for %s: %w", scopeID, err)
	}
	return fresh == 1, nil
}
