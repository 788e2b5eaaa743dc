package database

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassUnavailable
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassUnavailable:
		return "unavailable"
	default:
		return "permanent"
	}
}

// ClassifyError tags a driver error for logging. Nothing in this module
// retries on the result.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case strings.HasPrefix(code, "08"), code == "57P01", code == "57P03":
			return ErrorClassUnavailable
		case code == "40001", code == "40P01", code == "55P03":
			return ErrorClassTransient
		}
		return ErrorClassPermanent
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassUnavailable
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassUnavailable
	}

	return ErrorClassPermanent
}
