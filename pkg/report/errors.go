package report

import (
	"errors"

	"github.com/starlight-qa/starlight/pkg/xmltree"
)

var (
	// ErrMalformedDocument is returned when the report bytes do not contain
	// a single readable element.
	ErrMalformedDocument = xmltree.ErrMalformedDocument

	// ErrInsufficientVersionHistory is returned when the report schema
	// declares fewer than two binary version columns.
	ErrInsufficientVersionHistory = errors.New("insufficient version history")

	// ErrMissingRequiredFilterKey is returned when Filters carries no
	// Priority.
	ErrMissingRequiredFilterKey = errors.New("missing required filter key: Priority")

	// ErrInvalidFilter is returned for filter values outside their domain.
	ErrInvalidFilter = errors.New("invalid filter")
)
