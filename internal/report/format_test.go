package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0 sec"},
		{-5, "0 sec"},
		{1, "1s"},
		{60, "1m"},
		{65, "1m 5s"},
		{3600, "1h"},
		{3661, "1h 1m 1s"},
		{86400, "1d"},
		{90061, "1d 1h 1m 1s"},
		{172800, "2d"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatDuration(c.in), "FormatDuration(%d)", c.in)
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "-"},
		{-1, "-"},
		{1, "1.0 B"},
		{512, "512.0 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
		{1099511627776, "1.0 TB"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, FormatSize(c.in), "FormatSize(%d)", c.in)
	}
}
