// Package merge combines radargrams recorded back to back into continuous
// profiles. Field acquisitions split long lines into many files; any two
// consecutive recordings whose temporal gap stays within a threshold are
// treated as one physical profile and concatenated trace by trace.
package merge

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"gprproc/internal/models"
)

// Result is one merged profile, or the error that prevented its group from
// merging. Exactly one of Radargram and Err is set.
type Result struct {
	Radargram *models.Radargram
	Err       error
}

// GroupByGap partitions radargrams into temporal groups. The input is
// ordered by start time first; a radargram joins the current group when the
// gap between the group's last timestamp and its first timestamp is at most
// threshold, otherwise it starts a new group. Groups come out ordered by
// their earliest start time. The input slice is not modified.
func GroupByGap(rgs []*models.Radargram, threshold time.Duration) [][]*models.Radargram {
	if len(rgs) == 0 {
		return nil
	}

	ordered := make([]*models.Radargram, len(rgs))
	copy(ordered, rgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartTime().Before(ordered[j].StartTime())
	})

	groups := [][]*models.Radargram{{ordered[0]}}
	for _, rg := range ordered[1:] {
		current := groups[len(groups)-1]
		last := current[len(current)-1]
		if rg.StartTime().Sub(last.EndTime()) <= threshold {
			groups[len(groups)-1] = append(current, rg)
		} else {
			groups = append(groups, []*models.Radargram{rg})
		}
	}
	return groups
}

// Merge groups the radargrams by gap threshold and concatenates each group.
// A group that cannot be merged yields a Result with Err set; the other
// groups are unaffected. Single-member groups pass through untouched.
func Merge(rgs []*models.Radargram, threshold time.Duration) []Result {
	groups := GroupByGap(rgs, threshold)
	results := make([]Result, len(groups))
	for i, group := range groups {
		if len(group) == 1 {
			results[i] = Result{Radargram: group[0]}
			continue
		}
		merged, err := concatenate(group)
		results[i] = Result{Radargram: merged, Err: err}
	}
	return results
}

// concatenate stacks the members of one temporal group into a single
// radargram. Members must share trace geometry; positions survive only when
// every member is geolocated in the same CRS. Metadata comes from the first
// member, whose applied-filter log stands for the whole profile since group
// members ran through one chain.
func concatenate(group []*models.Radargram) (*models.Radargram, error) {
	head := group[0]
	samples := head.NumSamples()

	total := 0
	for _, rg := range group {
		if rg.NumSamples() != samples {
			return nil, &MergeError{Kind: IncompatibleGeometry, Member: rg.SourceFile,
				Detail: "trace length differs from the first member"}
		}
		if math.Abs(rg.SampleInterval-head.SampleInterval) > 1e-9 {
			return nil, &MergeError{Kind: IncompatibleGeometry, Member: rg.SourceFile,
				Detail: "sample interval differs from the first member"}
		}
		total += rg.NumTraces()
	}

	keepPositions := head.Geolocated()
	for _, rg := range group[1:] {
		if rg.Geolocated() != keepPositions || (keepPositions && rg.CRS != head.CRS) {
			keepPositions = false
			break
		}
	}
	keepDistance := true
	for _, rg := range group {
		if rg.Distance == nil {
			keepDistance = false
			break
		}
	}

	merged := head.Clone()
	merged.Data = mat.NewDense(total, samples, nil)
	merged.Timestamps = make([]time.Time, 0, total)
	if keepPositions {
		merged.Positions = make([]models.Position, 0, total)
	} else {
		merged.Positions = nil
		merged.CRS = ""
	}
	if keepDistance {
		merged.Distance = make([]float64, 0, total)
	} else {
		merged.Distance = nil
	}

	row := 0
	running := 0.0
	for m, rg := range group {
		for i := 0; i < rg.NumTraces(); i++ {
			merged.Data.SetRow(row, rg.Data.RawRowView(i))
			row++
		}
		merged.Timestamps = append(merged.Timestamps, rg.Timestamps...)
		if keepPositions {
			merged.Positions = append(merged.Positions, rg.Positions...)
		}
		if keepDistance {
			// Re-accumulate across the boundary: the next member
			// continues one trace spacing past the previous end.
			base := 0.0
			if m > 0 {
				base = running + meanSpacing(group[m-1].Distance)
			}
			for _, d := range rg.Distance {
				merged.Distance = append(merged.Distance, base+d-rg.Distance[0])
			}
			running = merged.Distance[len(merged.Distance)-1]
		}
	}
	return merged, nil
}

func meanSpacing(dist []float64) float64 {
	if len(dist) < 2 {
		return 0
	}
	return (dist[len(dist)-1] - dist[0]) / float64(len(dist)-1)
}
