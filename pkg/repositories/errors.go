package repositories

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/callgraph-labs/cdr-engine/pkg/apperrors"
)

// classifyError tags connection-class failures with apperrors.ErrUnavailable
// so callers can tell a broken datastore apart from a bad request. Anything
// else passes through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// SQLSTATE class 08 is connection exception, class 57 is operator
		// intervention (server shutdown, crash recovery).
		if strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57") {
			return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrUnavailable, err)
	}

	return err
}
