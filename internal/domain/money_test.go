package domain

import (
	"math"
	"testing"
)

func TestYuanToCents(t *testing.T) {
	tests := []struct {
		name    string
		input   float64
		want    int64
		wantErr bool
	}{
		{"zero", 0.0, 0, false},
		{"whole yuan", 100.0, 10000, false},
		{"one decimal place", 9.5, 950, false},
		{"two decimal places", 148.50, 14850, false},
		{"small amount", 0.01, 1, false},
		{"initial cash", 1000000.00, 100000000, false},
		{"negative value", -50.25, -5025, false},
		{"three decimal places", 1.234, 0, true},
		{"many decimal places", 0.001, 0, true},
		{"trailing precision issue 0.10", 0.10, 10, false},
		{"trailing precision issue 0.20", 0.20, 20, false},
		{"9.80 precision", 9.80, 980, false},
		{"99.99", 99.99, 9999, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := YuanToCents(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("YuanToCents(%v) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Errorf("YuanToCents(%v) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.want {
				t.Errorf("YuanToCents(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestCentsToYuan(t *testing.T) {
	tests := []struct {
		name  string
		input int64
		want  float64
	}{
		{"zero", 0, 0.0},
		{"one cent", 1, 0.01},
		{"one yuan", 100, 1.0},
		{"typical price", 980, 9.80},
		{"initial cash", 100000000, 1000000.00},
		{"negative", -5025, -50.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CentsToYuan(tt.input)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CentsToYuan(%d) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
