package dashboard

import (
	"errors"
	"fmt"

	"linedash-backend/internal/query"
	"linedash-backend/internal/records"
)

var (
	ErrNotConfigured         = errors.New("database not configured")
	ErrCatalogFailed         = errors.New("catalog query failed")
	ErrSchemaDetectionFailed = errors.New("schema detection failed")
	ErrQueryFailed           = errors.New("query failed")
	ErrValidationFailed      = errors.New("validation failed")
)

func validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

// classifyQueryError maps aggregator failures onto the taxonomy. The driver
// text stays in the message.
func classifyQueryError(err error) error {
	var qe *records.QueryError
	switch {
	case errors.As(err, &qe):
		return fmt.Errorf("%w: %w", ErrQueryFailed, err)
	case errors.Is(err, query.ErrInvalidFilter):
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	default:
		return fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
}
