package cache

import (
	"strconv"
	"strings"
)

// DefaultNamespace prefixes every Redis key written by RedisStore.
const DefaultNamespace = "image-redirect"

// HashKey returns the Redis key of the hash holding all resolutions for namespace.
// Format: namespace:resolved
//
// Example:
//
//	image-redirect:resolved
func HashKey(namespace string) string {
	ns := strings.Trim(strings.TrimSpace(namespace), ":")
	if ns == "" {
		ns = DefaultNamespace
	}
	return ns + ":resolved"
}

// Field returns the hash field used for id. Base-10, no padding, so the
// field for 0 is "0" and negative identifiers keep their sign.
func Field(id int64) string {
	return strconv.FormatInt(id, 10)
}
