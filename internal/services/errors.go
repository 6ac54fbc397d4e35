package services

import "errors"

var (
	// ErrUnsupportedFileType is returned when an upload's declared content
	// type is not a recognized spreadsheet MIME type.
	ErrUnsupportedFileType = errors.New("only spreadsheet files are allowed")

	// ErrParseFailed is returned when a stored upload cannot be parsed as a
	// workbook.
	ErrParseFailed = errors.New("failed to parse spreadsheet")

	// ErrInvalidRole is returned when a role change names an unknown role.
	ErrInvalidRole = errors.New("invalid role")

	// ErrAxesNotConfigured is returned when chart data is requested before
	// the analysis has axes, either stored or given in the request.
	ErrAxesNotConfigured = errors.New("x and y axes are not configured")
)
