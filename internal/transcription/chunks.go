package transcription

import (
	"time"
)

// minTail is the shortest trailing window submitted on its own. Shorter
// remainders are folded into the preceding window.
const minTail = time.Second

// Segment is one window of the waveform. Data holds the encoded chunk only
// for the duration of a single service call.
type Segment struct {
	Index    int
	Start    time.Duration
	Duration time.Duration
	Path     string
	Data     []byte
}

// End returns Start+Duration.
func (s Segment) End() time.Duration { return s.Start + s.Duration }

// PlanChunks splits total into consecutive windows of length without overlap:
// window k covers [k*length, min((k+1)*length, total)).
func PlanChunks(total, length time.Duration) []Segment {
	if total <= 0 {
		return nil
	}
	if length <= 0 || length >= total {
		return []Segment{{Index: 0, Start: 0, Duration: total}}
	}
	var segments []Segment
	for start := time.Duration(0); start < total; start += length {
		duration := min(length, total-start)
		if duration < minTail && len(segments) > 0 {
			segments[len(segments)-1].Duration += duration
			break
		}
		segments = append(segments, Segment{Index: len(segments), Start: start, Duration: duration})
	}
	return segments
}
