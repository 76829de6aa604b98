package diarize

import (
	"reflect"
	"testing"
	"time"
)

func sec(f float64) time.Duration { return time.Duration(f * float64(time.Second)) }

func seg(start, end float64, spk int) TimelineSegment {
	return TimelineSegment{Start: sec(start), End: sec(end), Speaker: spk}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		timeline []TimelineSegment
		want     []TimelineSegment
	}{
		{
			name: "empty",
		},
		{
			// An intervening speaker breaks the run even though the later
			// spk0 window is within the gap of the first.
			name:     "interleaved speakers",
			timeline: []TimelineSegment{seg(0, 2, 0), seg(1, 3, 0), seg(2.5, 4.5, 1), seg(5, 7, 0)},
			want:     []TimelineSegment{seg(0, 3, 0), seg(2.5, 4.5, 1), seg(5, 7, 0)},
		},
		{
			name:     "gap of exactly two seconds does not merge",
			timeline: []TimelineSegment{seg(0, 2, 0), seg(4, 6, 0)},
			want:     []TimelineSegment{seg(0, 2, 0), seg(4, 6, 0)},
		},
		{
			name:     "gap just under two seconds merges",
			timeline: []TimelineSegment{seg(0, 2, 0), seg(3.9, 6, 0)},
			want:     []TimelineSegment{seg(0, 6, 0)},
		},
		{
			name:     "contained window keeps later end",
			timeline: []TimelineSegment{seg(0, 5, 1), seg(1, 3, 1)},
			want:     []TimelineSegment{seg(0, 5, 1)},
		},
		{
			name:     "runs of one second or less are dropped",
			timeline: []TimelineSegment{seg(0, 1, 0), seg(1, 3, 1), seg(3, 3.5, 0)},
			want:     []TimelineSegment{seg(1, 3, 1)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(tt.timeline, 2*time.Second, time.Second)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Merge = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	bad := DefaultConfig()
	bad.Window = 0
	bad.PeakLevel = 2
	if err := bad.Validate(); err == nil {
		t.Fatal("expected errors")
	}
}
