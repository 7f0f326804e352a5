package proof

import "time"

// SetNowFunc replaces the workflow clock and returns a func restoring it.
func SetNowFunc(f func() time.Time) (reset func()) {
	old := nowFunc
	nowFunc = f
	return func() { nowFunc = old }
}
