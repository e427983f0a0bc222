package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// Transienter is implemented by errors that know whether a retry could help.
type Transienter interface {
	Transient() bool
}

// transientPatterns are substrings of error messages that indicate a
// temporary condition in the network or the database driver.
var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"database is locked",
	"sqlite_busy",
	"too many clients",
	"conn closed",
}

// IsTransient reports whether err (or any error in its chain) is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var tr Transienter
	if errors.As(err, &tr) {
		return tr.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether statusCode is a server-side condition
// that a later request may not hit.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 425, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
