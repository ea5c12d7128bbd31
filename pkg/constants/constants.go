// Package constants provides shared constants used throughout the syncmerge codebase.
// This includes analysis budgets, confidence thresholds, limits and file
// permissions that should be consistent across components.
package constants

import "time"

// Timing constants used by detection and analysis
const (
	// DefaultTimeWindow is the timestamp gap beyond which two edits are not
	// considered concurrent and the newer side wins without a conflict.
	DefaultTimeWindow = 60 * time.Second

	// DefaultAnalysisTimeout is the wall-clock budget for analyzing one conflict.
	DefaultAnalysisTimeout = 5 * time.Second

	// MinAnalysisBudget is the smallest budget the selector attempts to use.
	// Smaller budgets time out before any analysis runs.
	MinAnalysisBudget = 100 * time.Millisecond

	// NewerThreshold is the minimum timestamp gap the detector's lightweight
	// heuristic treats as a meaningful ordering signal.
	NewerThreshold = 1 * time.Second
)

// Confidence constants
const (
	// ConfirmationThreshold is the confidence below which a resolution
	// requires user confirmation.
	ConfirmationThreshold = 0.6

	// DefaultNumberTolerance is the absolute tolerance for numeric equality.
	DefaultNumberTolerance = 0.01

	// FailedMergeConfidence is reported when a merge cannot combine its inputs.
	FailedMergeConfidence = 0.1

	// TimeoutConfidence is reported when analysis exceeds its budget.
	TimeoutConfidence = 0.1
)

// Limit constants
const (
	// DefaultHistoryLimit is the number of conflicts retained per entity key.
	DefaultHistoryLimit = 50

	// MaxTitleLength is the maximum summary/title length accepted by validation.
	MaxTitleLength = 255

	// MaxTextLength is the maximum length of any other text field.
	MaxTextLength = 32767

	// LongTextThreshold is the length above which description-like fields
	// are merged section by section.
	LongTextThreshold = 100

	// ShortTextThreshold bounds comparably sized texts merged section by section.
	ShortTextThreshold = 500
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)
