package engine

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/abdidvp/lintfix/internal/domain"
)

// classify wraps a failed round trip into a *domain.TransportError whose
// kind drives the client's recovery.
func classify(op string, err error) *domain.TransportError {
	return &domain.TransportError{Kind: kindOf(err), Op: op, Err: err}
}

func kindOf(err error) domain.TransportKind {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return domain.TransportRefused
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return domain.TransportReset
	case errors.Is(err, context.DeadlineExceeded):
		return domain.TransportTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return domain.TransportTimeout
	}
	return domain.TransportOther
}
