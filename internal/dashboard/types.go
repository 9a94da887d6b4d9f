package dashboard

import (
	"strings"

	"linedash-backend/internal/query"
	"linedash-backend/internal/shift"
)

// FilterSet is the per-request filter as received from the presentation layer.
type FilterSet struct {
	Table      string `json:"table,omitempty"`
	Date       string `json:"date,omitempty"`
	Shift      string `json:"shift,omitempty"`
	Identifier string `json:"identifier,omitempty"`
	Page       int    `json:"page,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

func (f FilterSet) filter() (query.Filter, error) {
	s, err := shift.Parse(f.Shift)
	if err != nil {
		return query.Filter{}, validation("%v", err)
	}
	return query.Filter{
		Date:       strings.TrimSpace(f.Date),
		Shift:      s,
		Identifier: strings.TrimSpace(f.Identifier),
		Page:       f.Page,
		Limit:      f.Limit,
	}, nil
}

type IdentifierValues struct {
	ColumnName string   `json:"columnName"`
	Values     []string `json:"values"`
}

type ConnectionStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
