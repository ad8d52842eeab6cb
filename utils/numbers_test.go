package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSetScaleRoundUp(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		accuracy int32
		want     string
	}{
		{name: "rounds away from zero", value: "1.2301", accuracy: 2, want: "1.24"},
		{name: "exact scale untouched", value: "1.23", accuracy: 2, want: "1.23"},
		{name: "negative away from zero", value: "-1.2301", accuracy: 2, want: "-1.24"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := decimal.RequireFromString(tt.value)
			assert.Equal(t, tt.want, SetScaleRoundUp(value, tt.accuracy).String())
		})
	}
}

func TestSetScaleRoundHalfUp(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		accuracy int32
		want     string
	}{
		{name: "half rounds up", value: "1.235", accuracy: 2, want: "1.24"},
		{name: "below half rounds down", value: "1.2349", accuracy: 2, want: "1.23"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := decimal.RequireFromString(tt.value)
			assert.Equal(t, tt.want, SetScaleRoundHalfUp(value, tt.accuracy).String())
		})
	}
}

func TestIsScaleSmallerOrEqual(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		accuracy int32
		want     bool
	}{
		{name: "smaller scale", value: "1.2", accuracy: 2, want: true},
		{name: "equal scale", value: "1.23", accuracy: 2, want: true},
		{name: "larger scale", value: "1.234", accuracy: 2, want: false},
		{name: "integer", value: "12", accuracy: 0, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value := decimal.RequireFromString(tt.value)
			assert.Equal(t, tt.want, IsScaleSmallerOrEqual(value, tt.accuracy))
		})
	}
}
