//go:build unix

package tty

import "os"

// openController opens /dev/tty directly so the prompt works even when
// stdin/stdout are redirected to the archive/extract data stream.
func openController() (*os.File, error) {
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}
