package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type classified struct{ transient bool }

func (c classified) Error() string   { return "classified" }
func (c classified) Transient() bool { return c.transient }

func TestIsTransient_Transienter(t *testing.T) {
	if !IsTransient(classified{transient: true}) {
		t.Error("expected transient classification to be honored")
	}
	if IsTransient(classified{transient: false}) {
		t.Error("expected permanent classification to be honored")
	}
}

func TestIsTransient_WrappedTransienter(t *testing.T) {
	wrapped := fmt.Errorf("save watch: %w", classified{transient: true})
	if !IsTransient(wrapped) {
		t.Error("expected wrapped transient error to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	if IsTransient(errors.New("constraint failed: UNIQUE")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		err := fmt.Errorf("dial tcp: %w", errno)
		if !IsTransient(err) {
			t.Errorf("%v should be transient", errno)
		}
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	patterns := []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"database is locked (5) (SQLITE_BUSY)",
		"FATAL: sorry, too many clients already",
	}
	for _, p := range patterns {
		if !IsTransient(errors.New(p)) {
			t.Errorf("expected %q to be transient", p)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 425, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 410, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to NOT be transient", code)
		}
	}
}
