package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the width below which the detail pane is hidden
	// until it is focused.
	LayoutCompactWidth = 100

	// LayoutModelWidth is the minimum width to show the model column.
	LayoutModelWidth = 120

	// LayoutExtraWideWidth gives the detail pane more room.
	LayoutExtraWideWidth = 160
)

// Timing constants.
const (
	// DefaultUIInterval is how often the UI re-reads subscription snapshots.
	DefaultUIInterval = time.Second

	// RequestTimeout bounds one-off calls made from the UI (create, delete,
	// namespace and model lookups).
	RequestTimeout = 10 * time.Second

	// FlashDuration is how long a status message stays in the command bar.
	FlashDuration = 5 * time.Second
)

// progressBarWidth is the width of the list's inline progress bar.
const progressBarWidth = 12
