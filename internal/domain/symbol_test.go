package domain

import (
	"errors"
	"testing"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"bare shanghai main", "600000", "sh600000", false},
		{"bare star market", "688981", "sh688981", false},
		{"bare shenzhen main", "000001", "sz000001", false},
		{"bare chinext", "300750", "sz300750", false},
		{"bare beijing", "830799", "bj830799", false},
		{"prefixed lowercase", "sh600519", "sh600519", false},
		{"prefixed uppercase", "SZ000001", "sz000001", false},
		{"surrounding spaces", " 600000 ", "sh600000", false},
		{"wrong prefix for code", "sz600000", "", true},
		{"five digits", "60000", "", true},
		{"seven digits", "6000001", "", true},
		{"letters in code", "60000a", "", true},
		{"unknown code range", "990001", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeSymbol(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSymbol) {
					t.Errorf("NormalizeSymbol(%q) error = %v, want ErrInvalidSymbol", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Errorf("NormalizeSymbol(%q) unexpected error: %v", tt.input, err)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSymbolBoard(t *testing.T) {
	tests := []struct {
		symbol string
		want   Board
	}{
		{"sh600000", BoardSHMain},
		{"sh688981", BoardSTAR},
		{"sz000001", BoardSZMain},
		{"sz300750", BoardChiNext},
		{"bj830799", BoardBSE},
	}
	for _, tt := range tests {
		if got := SymbolBoard(tt.symbol); got != tt.want {
			t.Errorf("SymbolBoard(%s) = %s, want %s", tt.symbol, got, tt.want)
		}
	}
}

func TestBandRatioPct(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		stock  string
		want   int64
	}{
		{"main board", "sh600000", "浦发银行", 10},
		{"st main board", "sz000001", "ST平安", 5},
		{"star st flag ignored", "sh688981", "ST中芯", 20},
		{"chinext", "sz300750", "宁德时代", 20},
		{"beijing", "bj830799", "艾融软件", 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BandRatioPct(tt.symbol, tt.stock); got != tt.want {
				t.Errorf("BandRatioPct(%s, %s) = %d, want %d", tt.symbol, tt.stock, got, tt.want)
			}
		})
	}
}

func TestComputeBand(t *testing.T) {
	tests := []struct {
		name      string
		prevClose int64
		ratio     int64
		wantUp    int64
		wantDown  int64
	}{
		{"ten percent", 1000, 10, 1100, 900},
		{"rounding half up", 1234, 10, 1357, 1111}, // 1357.4 → 1357, 1110.6 → 1111
		{"five percent st", 500, 5, 525, 475},
		{"twenty percent", 5000, 20, 6000, 4000},
		{"floor at one cent", 1, 10, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up, down := ComputeBand(tt.prevClose, tt.ratio)
			if up != tt.wantUp || down != tt.wantDown {
				t.Errorf("ComputeBand(%d, %d) = (%d, %d), want (%d, %d)",
					tt.prevClose, tt.ratio, up, down, tt.wantUp, tt.wantDown)
			}
		})
	}
}
