//go:build !linux

package fleet

import "syscall"

// reuseAddrControl is a no-op on non-Linux platforms; SO_REUSEADDR tuning
// is a Linux-specific operational concern here.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
