package diarize

import "time"

// TimelineSegment is one contiguous run attributed to a local speaker during
// a single pipeline run. Offsets are from the start of the buffer.
type TimelineSegment struct {
	Start   time.Duration
	End     time.Duration
	Speaker int
}

// Duration returns End - Start.
func (s TimelineSegment) Duration() time.Duration { return s.End - s.Start }

// Merge coalesces consecutive runs of the same speaker separated by less than
// gap, extending the run to the later end, and drops every resulting run
// whose duration is not greater than minDur. A different speaker in between
// always breaks a run. The result keeps input order.
func Merge(timeline []TimelineSegment, gap, minDur time.Duration) []TimelineSegment {
	if len(timeline) == 0 {
		return nil
	}

	var out []TimelineSegment
	cur := timeline[0]
	flush := func() {
		if cur.Duration() > minDur {
			out = append(out, cur)
		}
	}
	for _, seg := range timeline[1:] {
		if seg.Speaker == cur.Speaker && seg.Start-cur.End < gap {
			cur.End = max(cur.End, seg.End)
			continue
		}
		flush()
		cur = seg
	}
	flush()
	return out
}
