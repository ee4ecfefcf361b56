package model

// ValidationRules defines validation requirements for a source
type ValidationRules struct {
	RequiredColumns []string `yaml:"required_columns" json:"requiredColumns"` // columns that must be present in the header
	OptionalColumns []string `yaml:"optional_columns" json:"optionalColumns"` // columns added as NULL when absent
	NumericColumns  []string `yaml:"numeric_columns" json:"numericColumns"`   // columns whose non-empty cells must be numeric
	DateColumns     []string `yaml:"date_columns" json:"dateColumns"`         // columns whose non-empty cells must be YYYY-MM-DD
}

// Source represents a CSV file loaded into a table of the same name
type Source struct {
	Table      string           `yaml:"table" json:"table"`
	Path       string           `yaml:"path" json:"path"`
	Validation *ValidationRules `yaml:"validation,omitempty" json:"validation,omitempty"` // per-source validation
}

// Export defines how result tables are written
type Export struct {
	// FloatPrecision fixes REAL cells to this many decimal places.
	// Unset keeps the shortest round-trip representation.
	FloatPrecision *int `yaml:"float_precision,omitempty" json:"floatPrecision,omitempty"`
}

// QueryParams are bound as named parameters to every query
type QueryParams struct {
	HourlyRate  float64 `json:"hourlyRate"`
	HoursPerDay int     `json:"hoursPerDay"`
}
