//go:build windows

package tty

import "os"

// openController opens CONIN$/CONOUT$'s combined device so the prompt works
// even when stdin/stdout are redirected, mirroring /dev/tty on unix.
func openController() (*os.File, error) {
	return os.OpenFile("CONIN$", os.O_RDWR, 0)
}
