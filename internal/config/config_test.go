package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategories(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: []string{}},
		{name: "single", raw: "Pizza", want: []string{"Pizza"}},
		{name: "trims and skips blanks", raw: " Pizza , ,Drinks,", want: []string{"Pizza", "Drinks"}},
		{name: "drops repeats", raw: "Pizza,Drinks,Pizza", want: []string{"Pizza", "Drinks"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{MenuCategories: tt.raw}
			assert.Equal(t, tt.want, cfg.Categories())
		})
	}
}
