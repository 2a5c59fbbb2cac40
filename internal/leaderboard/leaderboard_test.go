package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	entries := []Entry{
		{DisplayName: "GopherCon 2026", TotalCount: 412},
		{DisplayName: "Go Days Berlin", TotalCount: 97},
		{DisplayName: "Women Who Go Meetup", TotalCount: 44},
	}
	got := Format(entries)
	assert.Equal(t,
		":trophy: *Registration leaderboard*\n"+
			"1. GopherCon 2026: 412\n"+
			"2. Go Days Berlin: 97\n"+
			"3. Women Who Go Meetup: 44",
		got)
}

func TestFormatSingleEntry(t *testing.T) {
	got := Format([]Entry{{DisplayName: "Go Days Berlin", TotalCount: 5}})
	assert.Equal(t, ":trophy: *Registration leaderboard*\n1. Go Days Berlin: 5", got)
}
