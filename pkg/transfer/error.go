package transfer

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/David-Botos/captest/pkg/connector"
)

// transientMarkers are error message fragments of failures worth retrying
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"timeout",
	"temporary",
	"try again",
	"database is locked",
	"too many connections",
	"eof",
}

// IsRetryable reports whether a failed transfer may succeed on another attempt
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, connector.ErrNoTimestampColumn):
		return false
	case errors.Is(err, driver.ErrBadConn):
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
