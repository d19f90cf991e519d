package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeMessage(t *testing.T) {
	tests := []struct {
		name       string
		newCount   int
		queryCount int
		queryName  string
		wantTitle  string
		wantBody   string
	}{
		{
			name:     "single listing named query",
			newCount: 1, queryCount: 1, queryName: "Canary Wharf 2-bed",
			wantTitle: "New property - act fast!",
			wantBody:  `Be quick! A new property just matched "Canary Wharf 2-bed".`,
		},
		{
			name:     "single listing unnamed query",
			newCount: 1, queryCount: 1, queryName: "",
			wantTitle: "New property - act fast!",
			wantBody:  "Be quick! A new property just matched your search.",
		},
		{
			name:     "few listings single named query",
			newCount: 3, queryCount: 1, queryName: "Hackney",
			wantTitle: "We found 3 new properties!",
			wantBody:  `3 new properties matched "Hackney".`,
		},
		{
			name:     "busy single named query",
			newCount: 5, queryCount: 1, queryName: "Hackney",
			wantTitle: "We found 5 new properties!",
			wantBody:  `"Hackney" is busy: 5 new properties just appeared.`,
		},
		{
			name:     "multiple queries",
			newCount: 4, queryCount: 2, queryName: "",
			wantTitle: "We found 4 new properties!",
			wantBody:  "4 new properties across 2 of your searches.",
		},
		{
			name:     "many listings",
			newCount: 9, queryCount: 3, queryName: "",
			wantTitle: "Property update",
			wantBody:  "9 new properties across 3 of your searches.",
		},
		{
			name:     "few listings unnamed query",
			newCount: 2, queryCount: 1, queryName: "",
			wantTitle: "We found 2 new properties!",
			wantBody:  "2 new properties matched your search.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := ComposeMessage(tt.newCount, tt.queryCount, tt.queryName)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}
