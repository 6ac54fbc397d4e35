package types

import "time"

// Row is a single parsed spreadsheet row, keyed by header-row values.
type Row map[string]any

// Analysis pairs one uploaded spreadsheet's parsed rows with the owner's
// chart configuration choices.
type Analysis struct {
	// ID is the unique identifier of the analysis.
	ID int64 `json:"id" db:"id"`

	// UserID references the owning user.
	UserID int `json:"userId" db:"user_id"`

	// FileName is the original name of the uploaded file.
	FileName string `json:"fileName" db:"file_name"`

	// ObjectKey is the object-storage key of the raw uploaded file.
	// It is an internal reference and never exposed in API responses.
	ObjectKey string `json:"-" db:"object_key"`

	// XAxis is the column chosen for chart labels. Empty until configured.
	XAxis string `json:"xAxis,omitempty" db:"x_axis"`

	// YAxis is the column chosen for chart values. Empty until configured.
	YAxis string `json:"yAxis,omitempty" db:"y_axis"`

	// ChartType is the chosen chart kind (bar, line, pie, ...).
	// Empty until configured.
	ChartType string `json:"chartType,omitempty" db:"chart_type"`

	// Data holds the parsed rows of the first sheet, in sheet order.
	// It is written once at upload time and never mutated.
	Data []Row `json:"data" db:"data"`

	// CreatedAt is the timestamp when the analysis was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
