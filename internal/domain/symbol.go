package domain

import "strings"

// Board identifies the listing segment a symbol trades on. The board
// determines the daily price-band ratio.
type Board string

const (
	BoardSHMain  Board = "sh_main" // Shanghai main board (60xxxx)
	BoardSTAR    Board = "star"    // STAR market (688xxx)
	BoardSZMain  Board = "sz_main" // Shenzhen main board (00xxxx)
	BoardChiNext Board = "chinext" // ChiNext (30xxxx)
	BoardBSE     Board = "bse"     // Beijing exchange (43/83/87/92xxxx)
)

// NormalizeSymbol converts user input to the canonical exchange-prefixed
// form, e.g. "600000" → "sh600000", "SZ000001" → "sz000001". The exchange
// is inferred from the code prefix when absent. Returns ErrInvalidSymbol
// for anything that is not a listed A-share code.
func NormalizeSymbol(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	code := s
	prefix := ""
	if len(s) == 8 && (strings.HasPrefix(s, "sh") || strings.HasPrefix(s, "sz") || strings.HasPrefix(s, "bj")) {
		prefix = s[:2]
		code = s[2:]
	}

	if len(code) != 6 || !isDigits(code) {
		return "", ErrInvalidSymbol
	}

	inferred, err := exchangeFor(code)
	if err != nil {
		return "", err
	}
	if prefix != "" && prefix != inferred {
		return "", ErrInvalidSymbol
	}
	return inferred + code, nil
}

// SymbolBoard returns the listing board for a canonical symbol.
func SymbolBoard(symbol string) Board {
	code := symbol
	if len(symbol) == 8 {
		code = symbol[2:]
	}
	switch {
	case strings.HasPrefix(code, "688"):
		return BoardSTAR
	case strings.HasPrefix(code, "60"):
		return BoardSHMain
	case strings.HasPrefix(code, "30"):
		return BoardChiNext
	case strings.HasPrefix(code, "00"):
		return BoardSZMain
	default:
		return BoardBSE
	}
}

// BandRatioPct returns the daily price-band ratio in percent for a
// symbol. ST-flagged names on the main boards move within ±5%; STAR and
// ChiNext within ±20%; Beijing within ±30%; everything else ±10%.
func BandRatioPct(symbol, name string) int64 {
	switch SymbolBoard(symbol) {
	case BoardSTAR, BoardChiNext:
		return 20
	case BoardBSE:
		return 30
	}
	if strings.Contains(strings.ToUpper(name), "ST") {
		return 5
	}
	return 10
}

// ComputeBand derives today's limit-up and limit-down prices from the
// previous close, rounding to the nearest cent. The lower bound never
// falls below one cent.
func ComputeBand(prevClose, ratioPct int64) (limitUp, limitDown int64) {
	limitUp = (prevClose*(100+ratioPct) + 50) / 100
	limitDown = (prevClose*(100-ratioPct) + 50) / 100
	if limitDown < 1 {
		limitDown = 1
	}
	return limitUp, limitDown
}

func exchangeFor(code string) (string, error) {
	switch {
	case strings.HasPrefix(code, "60"), strings.HasPrefix(code, "68"):
		return "sh", nil
	case strings.HasPrefix(code, "00"), strings.HasPrefix(code, "30"):
		return "sz", nil
	case strings.HasPrefix(code, "43"), strings.HasPrefix(code, "83"),
		strings.HasPrefix(code, "87"), strings.HasPrefix(code, "92"):
		return "bj", nil
	default:
		return "", ErrInvalidSymbol
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
