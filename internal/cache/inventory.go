package cache

import "fmt"

const (
	UnreadCountKeyPrefix = "notifications:unread:%d"
)

// UnreadCountKey is the cache key for a recipient's unread notification count.
func UnreadCountKey(userID uint) string {
	return fmt.Sprintf(UnreadCountKeyPrefix, userID)
}
