package persist

import (
	"time"

	"github.com/cockroachdb/errors"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// ParseTTL parses a human-written duration into a TTL. On top of the
// standard unit suffixes it accepts days and weeks, composed additively:
// "90s", "45m", "1w2d12h". An empty string is an error; use DefaultTTL
// explicitly if you want the fallback.
func ParseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("persist: empty ttl")
	}
	d, err := str2duration.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(err, "persist: parse ttl %q", s)
	}
	if d <= 0 {
		return 0, errors.Newf("persist: ttl %q must be positive", s)
	}
	return d, nil
}

// TTLString renders a duration in the same compact form ParseTTL accepts.
func TTLString(d time.Duration) string {
	return str2duration.String(d)
}
