package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/watchtracker/internal/model"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name        string
		fragments   []string
		previous    model.ResultSet
		wantCurrent model.ResultSet
		wantNew     model.ResultSet
	}{
		{
			name:        "first scan",
			fragments:   []string{"Omega Constellation 1970", "Omega Constellation 1985 NOS"},
			previous:    nil,
			wantCurrent: model.ResultSet{"Omega Constellation 1970", "Omega Constellation 1985 NOS"},
			wantNew:     model.ResultSet{"Omega Constellation 1970", "Omega Constellation 1985 NOS"},
		},
		{
			name:        "duplicates collapse in first-seen order",
			fragments:   []string{"Tank Must", "Tank Louis", "Tank Must", "Tank Louis", "Tank Must"},
			previous:    model.ResultSet{},
			wantCurrent: model.ResultSet{"Tank Must", "Tank Louis"},
			wantNew:     model.ResultSet{"Tank Must", "Tank Louis"},
		},
		{
			name:        "overlapping previous",
			fragments:   []string{"Omega Constellation 1970", "Omega Constellation 1985 NOS", "Omega Constellation 1970"},
			previous:    model.ResultSet{"Omega Constellation 1970", "Omega Constellation 1962"},
			wantCurrent: model.ResultSet{"Omega Constellation 1970", "Omega Constellation 1985 NOS"},
			wantNew:     model.ResultSet{"Omega Constellation 1985 NOS"},
		},
		{
			name:        "disjoint previous",
			fragments:   []string{"Seamaster 300", "Seamaster 120"},
			previous:    model.ResultSet{"Speedmaster Pro"},
			wantCurrent: model.ResultSet{"Seamaster 300", "Seamaster 120"},
			wantNew:     model.ResultSet{"Seamaster 300", "Seamaster 120"},
		},
		{
			name:        "identical rescan",
			fragments:   []string{"Seamaster 300", "Seamaster 120"},
			previous:    model.ResultSet{"Seamaster 120", "Seamaster 300"},
			wantCurrent: model.ResultSet{"Seamaster 300", "Seamaster 120"},
			wantNew:     model.ResultSet{},
		},
		{
			name:        "case and spacing are significant",
			fragments:   []string{"seamaster 300", "Seamaster  300"},
			previous:    model.ResultSet{"Seamaster 300"},
			wantCurrent: model.ResultSet{"seamaster 300", "Seamaster  300"},
			wantNew:     model.ResultSet{"seamaster 300", "Seamaster  300"},
		},
		{
			name:        "nothing found",
			fragments:   []string{},
			previous:    model.ResultSet{"Seamaster 300"},
			wantCurrent: model.ResultSet{},
			wantNew:     model.ResultSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diff(tt.fragments, tt.previous)
			assert.Equal(t, tt.wantCurrent, d.Current)
			assert.Equal(t, tt.wantNew, d.New)

			for _, item := range d.New {
				assert.True(t, d.Current.Contains(item), "new item %q missing from current", item)
				assert.False(t, tt.previous.Contains(item), "new item %q was already known", item)
			}
			for _, item := range d.Current {
				if !tt.previous.Contains(item) {
					assert.Contains(t, d.New, item)
				}
			}
		})
	}
}
