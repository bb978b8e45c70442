package match

// Tracker records which labels have been assigned so far in one document's
// processing pass. It is ephemeral: reset before a document's first field and
// discarded when the document completes. The tracker is not safe for
// concurrent use; each document gets its own instance.
type Tracker struct {
	usage map[string]int
}

// NewTracker returns an empty per-document usage tracker.
func NewTracker() *Tracker {
	return &Tracker{usage: make(map[string]int)}
}

// Reset clears all recorded usage.
func (t *Tracker) Reset() {
	t.usage = make(map[string]int)
}

// RecordUsage increments the count for label and returns the new count.
func (t *Tracker) RecordUsage(label string) int {
	t.usage[label]++
	return t.usage[label]
}

// IsUsed reports whether label has been assigned in this document.
func (t *Tracker) IsUsed(label string) bool {
	return t.usage[label] > 0
}

// UsageCount returns how many times label has been assigned in this document.
func (t *Tracker) UsageCount(label string) int {
	return t.usage[label]
}
