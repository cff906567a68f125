package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseItems(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []int64
		qty     []int
		notes   []string
		wantErr bool
	}{
		{name: "single", raw: "1:4", want: []int64{1}, qty: []int{4}, notes: []string{""}},
		{name: "with notes", raw: "1:2:no onion, 2:1", want: []int64{1, 2}, qty: []int{2, 1}, notes: []string{"no onion", ""}},
		{name: "note with colon", raw: "3:1:ready at 12:30", want: []int64{3}, qty: []int{1}, notes: []string{"ready at 12:30"}},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "missing quantity", raw: "1", wantErr: true},
		{name: "bad id", raw: "x:1", wantErr: true},
		{name: "bad quantity", raw: "1:two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := parseItems(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, lines, len(tt.want))
			for i, line := range lines {
				assert.Equal(t, tt.want[i], line.MenuItemID)
				assert.Equal(t, tt.qty[i], line.Quantity)
				if tt.notes[i] == "" {
					assert.Nil(t, line.Note)
				} else {
					require.NotNil(t, line.Note)
					assert.Equal(t, tt.notes[i], *line.Note)
				}
			}
		})
	}
}
