package core

import "time"

// Cache is the read-side cache port. Entries expire after the ttl given to Set.
type Cache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	DeletePrefix(prefix string)
}
