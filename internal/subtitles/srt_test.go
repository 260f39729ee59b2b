package subtitles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scribe/internal/services"
)

const canonical = "1\n00:00:00,000 --> 00:00:02,500\nHello there.\n\n" +
	"2\n00:00:02,500 --> 00:00:05,000\nTwo lines\nof text.\n\n" +
	"3\n01:02:03,004 --> 01:02:04,000\nLater.\n\n"

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00,000"},
		{10 * time.Second, "00:00:10,000"},
		{time.Hour + 2*time.Minute + 3*time.Second + 4*time.Millisecond, "01:02:03,004"},
		{1999 * time.Microsecond, "00:00:00,001"},
		{-time.Second, "00:00:00,000"},
		{100 * time.Hour, "100:00:00,000"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, FormatTimestamp(tc.in))
	}
}

func TestParseTimestamp(t *testing.T) {
	d, err := ParseTimestamp("01:02:03,004")
	require.NoError(t, err)
	require.Equal(t, time.Hour+2*time.Minute+3*time.Second+4*time.Millisecond, d)

	d, err = ParseTimestamp("00:00:01.5")
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, d)

	for _, bad := range []string{"", "00:00:01", "0:61:00,000", "aa:bb:cc,ddd", "00:00:00,1234"} {
		_, err := ParseTimestamp(bad)
		require.Error(t, err, bad)
	}
}

func TestRoundTripIsByteIdentical(t *testing.T) {
	doc, err := Parse([]byte(canonical))
	require.NoError(t, err)
	require.Len(t, doc.Lines, 3)
	require.Equal(t, "Two lines\nof text.", doc.Lines[1].Text)
	require.NoError(t, Validate(doc))
	require.Equal(t, canonical, string(Format(doc)))

	again, err := Parse(Format(doc))
	require.NoError(t, err)
	require.Equal(t, Format(doc), Format(again))
}

func TestParseTolerantInput(t *testing.T) {
	raw := "\ufeff1\r\n00:00:01,000 --> 00:00:02,000 X1:10 X2:20\r\n  padded text  \r\n\r\n\r\n2\r\n00:00:03,000 --> 00:00:04,000\r\nnext\r\n"
	doc, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, doc.Lines, 2)
	require.Equal(t, 2*time.Second, doc.Lines[0].End)
	require.Equal(t, "1\n00:00:01,000 --> 00:00:02,000\npadded text\n\n2\n00:00:03,000 --> 00:00:04,000\nnext\n\n", string(Format(doc)))
}

func TestParseRejectsMalformedBlocks(t *testing.T) {
	for _, raw := range []string{
		"x\n00:00:01,000 --> 00:00:02,000\ntext\n",
		"1\n00:00:01,000 00:00:02,000\ntext\n",
		"1\n00:00:01,000 --> 00:00:02,000\n",
	} {
		_, err := Parse([]byte(raw))
		require.Error(t, err, raw)
	}
	doc, err := Parse(nil)
	require.NoError(t, err)
	require.Zero(t, doc.Len())
}

func TestValidateReportsViolations(t *testing.T) {
	doc := Document{Lines: []Line{
		{Index: 1, Start: 0, End: time.Second, Text: "a"},
		{Index: 3, Start: 500 * time.Millisecond, End: 500 * time.Millisecond, Text: " "},
	}}
	err := Validate(doc)
	require.ErrorIs(t, err, services.ErrAssemblyInvariant)
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)
	require.Len(t, invErr.Violations, 4)
}

func TestRepairAppliesPolicy(t *testing.T) {
	lines := []Line{
		{Start: 0, End: 2 * time.Second, Text: "first"},
		{Start: 2 * time.Second, End: 2 * time.Second, Text: "zero length"},
		{Start: 3 * time.Second, End: 4 * time.Second, Text: "   "},
		{Start: 1500 * time.Millisecond, End: 3 * time.Second, Text: "overlaps"},
		{Start: 2500 * time.Millisecond, End: 3 * time.Second, Text: "swallowed"},
		{Start: 5 * time.Second, End: 6 * time.Second, Text: "after gap"},
	}
	doc, stats := Repair(lines)
	require.NoError(t, Validate(doc))
	require.Equal(t, []string{"first", "overlaps", "after gap"}, texts(doc))
	require.Equal(t, 2*time.Second, doc.Lines[1].Start)
	require.Equal(t, 3, doc.Lines[2].Index)
	require.Equal(t, RepairStats{DroppedEmpty: 1, DroppedInvalid: 2, Trimmed: 2}, stats)
}

func texts(d Document) []string {
	out := make([]string, 0, len(d.Lines))
	for _, l := range d.Lines {
		out = append(out, l.Text)
	}
	return out
}
