package scan

import "github.com/sells-group/watchtracker/internal/model"

// Delta is the result of comparing one scan's fragments to the previous snapshot.
type Delta struct {
	Current model.ResultSet
	New     model.ResultSet
}

// Diff deduplicates fragments into the current result set and returns the
// members absent from previous. Comparison is exact string equality.
func Diff(fragments []string, previous model.ResultSet) Delta {
	current := model.NewResultSet(fragments)
	return Delta{Current: current, New: current.Minus(previous)}
}
