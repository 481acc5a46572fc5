package query_test

import (
	"testing"

	"github.com/hbomb79/mediainspect/internal/fields"
	"github.com/hbomb79/mediainspect/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(name, size, duration, fps, bitrate string) fields.Row {
	return fields.Row{name, size, duration, fps, bitrate, "1920x1080", "h264", "High", "8bit", "2CH 128k"}
}

func Test_Filter_Bitrate(t *testing.T) {
	rows := []fields.Row{
		row("slow.mkv", "1.00 GB", "01:00:00", "23.98", "3.50 Mbps"),
		row("fast.mkv", "2.00 GB", "01:00:00", "23.98", "7.20 Mbps"),
	}

	filter := query.ParseFilter("bitrate:>:5")
	require.True(t, filter.Valid())

	out := query.Apply(rows, []query.Filter{filter})
	assert.Equal(t, []fields.Row{rows[1]}, out)
}

func Test_Filter_DurationShorthand(t *testing.T) {
	rows := []fields.Row{
		row("short.mkv", "1.00 GB", "01:00:00", "23.98", "3.50 Mbps"),
		row("long.mkv", "1.00 GB", "02:00:00", "23.98", "3.50 Mbps"),
		row("edge.mkv", "1.00 GB", "01:30:00", "23.98", "3.50 Mbps"),
		row("clip.mkv", "1.00 MB", "04:05", "23.98", "3.50 Mbps"),
	}

	out := query.Apply(rows, query.ParseFilters([]string{"duration:>:1h30m"}))
	assert.Equal(t, []fields.Row{rows[1]}, out)

	out = query.Apply(rows, query.ParseFilters([]string{"duration:<:90min"}))
	assert.Equal(t, []fields.Row{rows[0], rows[3]}, out)

	out = query.Apply(rows, query.ParseFilters([]string{"duration:<:300"}))
	assert.Equal(t, []fields.Row{rows[3]}, out, "plain numbers are seconds")
}

func Test_Filter_Size(t *testing.T) {
	rows := []fields.Row{
		row("small.mkv", "700.00 MB", "01:00:00", "23.98", "3.50 Mbps"),
		row("large.mkv", "4.37 GB", "01:00:00", "23.98", "3.50 Mbps"),
	}

	assert.Equal(t, []fields.Row{rows[1]}, query.Apply(rows, query.ParseFilters([]string{"size:>:1 GB"})))
	assert.Equal(t, []fields.Row{rows[0]}, query.Apply(rows, query.ParseFilters([]string{"size:<:1073741824"})))
}

func Test_Filter_Fps(t *testing.T) {
	rows := []fields.Row{
		row("film.mkv", "1.00 GB", "01:00:00", "23.98", "3.50 Mbps"),
		row("sport.mkv", "1.00 GB", "01:00:00", "59.94", "3.50 Mbps"),
		row("audio.mka", "1.00 MB", "01:00:00", "", ""),
	}

	assert.Equal(t, []fields.Row{rows[1]}, query.Apply(rows, query.ParseFilters([]string{"fps:>:30"})))
	assert.Equal(t, []fields.Row{rows[0], rows[2]}, query.Apply(rows, query.ParseFilters([]string{"fps:<:30"})), "empty fps compares as zero")
}

func Test_Filter_Filename(t *testing.T) {
	rows := []fields.Row{
		row("Show.S01E01.mkv", "", "", "", ""),
		row("Movie (2020).mp4", "", "", "", ""),
		row("show.s01e02.mkv", "", "", "", ""),
	}

	out := query.Apply(rows, query.ParseFilters([]string{"filename:SHOW"}))
	assert.Equal(t, []fields.Row{rows[0], rows[2]}, out, "filename matching is a case-insensitive substring")

	out = query.Apply(rows, query.ParseFilters([]string{"filename:(2020)"}))
	assert.Equal(t, []fields.Row{rows[1]}, out)

	colon := []fields.Row{row("a:b.mkv", "", "", "", ""), row("ab.mkv", "", "", "", "")}
	out = query.Apply(colon, query.ParseFilters([]string{"filename:a:b"}))
	assert.Equal(t, []fields.Row{colon[0]}, out, "everything after the first colon is the pattern")
}

func Test_Filter_CombinedFiltersAreAnded(t *testing.T) {
	rows := []fields.Row{
		row("a.mkv", "1.00 GB", "02:00:00", "23.98", "7.20 Mbps"),
		row("b.mkv", "1.00 GB", "00:30", "23.98", "7.20 Mbps"),
		row("c.mkv", "1.00 GB", "02:00:00", "23.98", "3.50 Mbps"),
	}

	out := query.Apply(rows, query.ParseFilters([]string{"bitrate:>:5", "duration:>:1h"}))
	assert.Equal(t, []fields.Row{rows[0]}, out)
}

func Test_Filter_FailOpen(t *testing.T) {
	tests := []struct {
		summary string
		filter  string
		err     error
	}{
		{summary: "no colon", filter: "bitrate", err: query.ErrFilterSyntax},
		{summary: "missing value", filter: "bitrate:>", err: query.ErrFilterSyntax},
		{summary: "too many parts", filter: "bitrate:>:5:6", err: query.ErrFilterSyntax},
		{summary: "unknown column", filter: "colour:>:5", err: query.ErrFilterColumn},
		{summary: "non numeric column", filter: "codec:>:5", err: query.ErrFilterColumn},
		{summary: "unknown operator", filter: "bitrate:=:5", err: query.ErrFilterOp},
		{summary: "unparseable value", filter: "bitrate:>:fast", err: query.ErrFilterValue},
		{summary: "unparseable duration", filter: "duration:>:1x", err: query.ErrFilterValue},
		{summary: "NaN bitrate", filter: "bitrate:>:NaN", err: query.ErrFilterValue},
		{summary: "NaN frame rate", filter: "fps:<:nan", err: query.ErrFilterValue},
		{summary: "empty", filter: "", err: query.ErrFilterSyntax},
	}

	rows := []fields.Row{
		row("a.mkv", "1.00 GB", "01:00:00", "23.98", "3.50 Mbps"),
		row("b.mkv", "", "", "", ""),
	}

	for _, test := range tests {
		t.Run(test.summary, func(t *testing.T) {
			filter := query.ParseFilter(test.filter)
			assert.False(t, filter.Valid())
			assert.ErrorIs(t, filter.Err(), test.err)
			for _, r := range rows {
				assert.True(t, filter.Matches(r), "invalid filters must match every row")
			}

			assert.Equal(t, rows, query.Apply(rows, []query.Filter{filter}))
		})
	}
}

func Test_Apply_NoFilters(t *testing.T) {
	rows := []fields.Row{row("a", "", "", "", ""), row("b", "", "", "", "")}
	assert.Equal(t, rows, query.Apply(rows, nil))
	assert.Empty(t, query.Apply(nil, query.ParseFilters([]string{"bitrate:>:1"})))
}
