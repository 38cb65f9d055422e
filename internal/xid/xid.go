package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

var (
	tempMu   sync.Mutex
	lastTemp int64
)

// Temp returns a temporary entity identifier derived from the wall clock
// in milliseconds. Server-assigned identifiers are small sequence values,
// so the ranges never collide. Strictly increasing within a process even
// when called twice in the same millisecond.
func Temp() int64 {
	tempMu.Lock()
	defer tempMu.Unlock()

	id := time.Now().UnixMilli()
	if id <= lastTemp {
		id = lastTemp + 1
	}
	lastTemp = id
	return id
}
