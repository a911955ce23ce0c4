package domain

import "errors"

// Validation errors for analysis inputs.
var (
	// ErrCompanyRequired indicates the analysis input names no company.
	ErrCompanyRequired = errors.New("company is required")

	// ErrIndustryRequired indicates the analysis input names no industry.
	ErrIndustryRequired = errors.New("industry is required")
)
