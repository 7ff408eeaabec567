// Package frame holds captured images and the hand-off between the capture
// callback and the render thread.
//
// A Frame wraps a native buffer that must be released exactly once. A Slot is
// a lock-free latest-value cell: the producer swaps the newest frame in and
// releases whatever it displaced, the renderer swaps nil in and owns what it
// got. Frames are never queued; freshness wins over completeness.
package frame
