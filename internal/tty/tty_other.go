//go:build !unix && !windows

package tty

import (
	"errors"
	"os"
)

func openController() (*os.File, error) {
	return nil, errors.New("tty: no controlling terminal support on this platform")
}
