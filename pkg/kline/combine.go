package kline

// Outcome is the resolved result of fetching one archive.
// Exactly one of Table or Err is set.
type Outcome struct {
	Key   DateKey
	Table *Table
	Err   error
}

// OK reports whether the fetch succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Combine concatenates the tables of all success outcomes into one dataset.
//
// The header is taken from the first success that carries one; the fetcher
// rejects headerless archives, so in practice that is the first success.
// All fetched tables are assumed to share an identical schema, and no
// reconciliation or deduplication is attempted.
// Each table's internal row order is preserved; cross-table order
// follows the order of the outcomes slice, which for coordinator output is
// completion order, not date order. Callers needing date ordering sort
// downstream.
//
// Zero successes (including an empty or nil outcomes slice) yield an empty
// table, not an error.
func Combine(outcomes []Outcome) *Table {
	combined := &Table{}
	for _, o := range outcomes {
		if !o.OK() || o.Table == nil {
			continue
		}
		if combined.Header == nil && len(o.Table.Header) > 0 {
			combined.Header = o.Table.Header
		}
		combined.Rows = append(combined.Rows, o.Table.Rows...)
	}
	return combined
}

// Failures returns the outcomes that did not succeed.
func Failures(outcomes []Outcome) []Outcome {
	var failed []Outcome
	for _, o := range outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}
