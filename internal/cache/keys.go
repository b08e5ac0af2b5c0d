package cache

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	queueKeyPrefix = "match:queue:"
	lockKeyPrefix  = "match:lock:"
)

func QueueKey(partySize int) string {
	return queueKeyPrefix + strconv.Itoa(partySize)
}

func LockKey(partySize int) string {
	return lockKeyPrefix + strconv.Itoa(partySize)
}

func PresenceKey(roomID uint) string {
	return fmt.Sprintf("chat:room:%d:online", roomID)
}

// partySizeFromQueueKey is the inverse of QueueKey.
func partySizeFromQueueKey(key string) (int, bool) {
	if !strings.HasPrefix(key, queueKeyPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(key, queueKeyPrefix))
	if err != nil {
		return 0, false
	}
	return n, true
}
