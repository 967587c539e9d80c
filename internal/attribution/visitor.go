package attribution

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

const fingerprintLength = 16

// ResolveVisitorID returns the client supplied id when present. Otherwise it derives a
// weak fingerprint from ip and user agent; visitors sharing a proxy collapse into one.
func ResolveVisitorID(explicit, ip, userAgent string) VisitorID {
	if explicit != "" {
		return VisitorID(explicit)
	}

	sum := strconv.FormatUint(xxhash.Sum64String(ip+"-"+userAgent), 16)

	// left-pad so every fingerprint has the same length
	for len(sum) < fingerprintLength {
		sum = "0" + sum
	}

	return VisitorID(sum[:fingerprintLength])
}
