package transcription

import (
	"strings"
	"time"

	"scribe/internal/services/stt"
	"scribe/internal/subtitles"
)

// chunkLines converts one service response into global-time lines. Segment
// times are clamped to the window; a response without timing becomes a
// single line spanning the window.
func chunkLines(seg Segment, resp stt.Response) []subtitles.Line {
	if len(resp.Segments) == 0 {
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return nil
		}
		return []subtitles.Line{{Start: seg.Start, End: seg.End(), Text: text}}
	}
	lines := make([]subtitles.Line, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		start := clamp(s.Start, seg.Duration)
		end := clamp(s.End, seg.Duration)
		lines = append(lines, subtitles.Line{
			Start: seg.Start + start,
			End:   seg.Start + end,
			Text:  s.Text,
		})
	}
	return lines
}

func clamp(d, limit time.Duration) time.Duration {
	switch {
	case d < 0:
		return 0
	case d > limit:
		return limit
	default:
		return d.Truncate(time.Millisecond)
	}
}

// stitch concatenates lines in window order. Windows without a response are
// skipped.
func stitch(segments []Segment, responses []*stt.Response) []subtitles.Line {
	var lines []subtitles.Line
	for i, seg := range segments {
		if i >= len(responses) || responses[i] == nil {
			continue
		}
		lines = append(lines, chunkLines(seg, *responses[i])...)
	}
	return lines
}
