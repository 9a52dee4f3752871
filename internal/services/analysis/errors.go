package analysis

import "errors"

var (
	// ErrInsufficientGroups is returned when a multi-group test has fewer than two groups
	ErrInsufficientGroups = errors.New("insufficient groups")

	// ErrInsufficientData is returned when a sample is too small for the test
	ErrInsufficientData = errors.New("insufficient data")

	// ErrDegenerate is returned when the input makes the statistic undefined
	// (zero range, zero within-group variance, all ranks tied)
	ErrDegenerate = errors.New("degenerate input")
)
