package cache

import (
	"encoding/binary"
	"time"

	"github.com/VictoriaMetrics/fastcache"
)

// memoryLevel is the L1 cache: a bounded, internally-evicting
// fastcache.Cache, grounded on the asset cache's use of fastcache,
// generalized from file content to arbitrary blobs and given a TTL
// fastcache itself doesn't have. Each stored value is prefixed with an
// 8-byte big-endian expiresAt (unix nanoseconds); entries past their
// expiry are treated as a miss and dropped on read.
type memoryLevel struct {
	fc    *fastcache.Cache
	stats counters
}

func newMemoryLevel(maxBytes int) *memoryLevel {
	return &memoryLevel{fc: fastcache.New(maxBytes)}
}

func (m *memoryLevel) get(key string) ([]byte, bool) {
	raw, ok := m.fc.HasGet(nil, []byte(key))
	if !ok || len(raw) < 8 {
		m.stats.recordMiss()
		return nil, false
	}

	expiresAt := int64(binary.BigEndian.Uint64(raw[:8]))
	if expiresAt != 0 && time.Now().UnixNano() > expiresAt {
		m.fc.Del([]byte(key))
		m.stats.recordMiss()
		return nil, false
	}

	blob := raw[8:]
	m.stats.recordHit(len(blob))
	return blob, true
}

func (m *memoryLevel) set(key string, blob []byte, ttl time.Duration) {
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}

	raw := make([]byte, 8+len(blob))
	binary.BigEndian.PutUint64(raw[:8], uint64(expiresAt))
	copy(raw[8:], blob)

	m.fc.Set([]byte(key), raw)
}

func (m *memoryLevel) del(key string) {
	m.fc.Del([]byte(key))
}
