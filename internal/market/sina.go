package market

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hzfeng/papertrade/internal/domain"
)

const defaultSinaBaseURL = "http://hq.sinajs.cn"

// SinaFeed fetches real-time A-share quotes from the Sina Finance HQ
// endpoint. One GET serves any number of symbols:
//
//	http://hq.sinajs.cn/list=sh600000,sz000001
//
// Each response line looks like:
//
//	var hq_str_sh600000="浦发银行,8.44,8.43,8.39,8.45,8.38,...";
//
// Daily price bands are not part of the payload; they are derived from
// the previous close and the symbol's board ratio.
type SinaFeed struct {
	baseURL string
	client  *http.Client
}

// NewSinaFeed creates a SinaFeed with the given request timeout.
func NewSinaFeed(timeout time.Duration) *SinaFeed {
	return &SinaFeed{
		baseURL: defaultSinaBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// NewSinaFeedURL creates a SinaFeed against a custom base URL. Used by
// tests to point the feed at a local server.
func NewSinaFeedURL(baseURL string, timeout time.Duration) *SinaFeed {
	return &SinaFeed{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Quote fetches a single symbol.
func (f *SinaFeed) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	quotes, err := f.Quotes(ctx, []string{symbol})
	if err != nil {
		return nil, err
	}
	q, ok := quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote data for %s", symbol)
	}
	return q, nil
}

// Quotes fetches a batch of symbols in one request.
func (f *SinaFeed) Quotes(ctx context.Context, symbols []string) (map[string]*domain.Quote, error) {
	if len(symbols) == 0 {
		return map[string]*domain.Quote{}, nil
	}

	url := fmt.Sprintf("%s/list=%s", f.baseURL, strings.Join(symbols, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	// The HQ endpoint rejects requests without a Sina referer.
	req.Header.Set("Referer", "https://finance.sina.com.cn")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch quotes: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	lines := strings.Split(string(body), "\n")
	quotes := make(map[string]*domain.Quote, len(symbols))
	for i, symbol := range symbols {
		if i >= len(lines) {
			break
		}
		q, err := parseSinaLine(symbol, lines[i])
		if err != nil {
			// Skip unparseable symbols but keep the rest of the batch.
			continue
		}
		quotes[symbol] = q
	}
	return quotes, nil
}

// parseSinaLine parses one hq_str response line into a Quote.
// Field layout: 0 name, 1 open, 2 prev close, 3 current, 4 high,
// 5 low, 8 volume.
func parseSinaLine(symbol, line string) (*domain.Quote, error) {
	start := strings.Index(line, "\"")
	end := strings.LastIndex(line, "\"")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("invalid quote line")
	}

	fields := strings.Split(line[start+1:end], ",")
	if len(fields) < 9 {
		return nil, fmt.Errorf("insufficient fields: got %d", len(fields))
	}

	name := fields[0]
	price := parsePriceCents(fields[3])
	prevClose := parsePriceCents(fields[2])
	volume, _ := strconv.ParseInt(fields[8], 10, 64)

	limitUp, limitDown := domain.ComputeBand(prevClose, domain.BandRatioPct(symbol, name))

	// A live symbol always trades at a positive price with volume;
	// zeros mean the exchange halted it.
	suspended := price <= 0 || volume == 0

	return &domain.Quote{
		Symbol:    symbol,
		Name:      name,
		Price:     price,
		PrevClose: prevClose,
		LimitUp:   limitUp,
		LimitDown: limitDown,
		Suspended: suspended,
		AsOf:      time.Now(),
	}, nil
}

// parsePriceCents converts a decimal price string to cents, rounding
// sub-cent precision (fund quotes carry three decimals).
func parsePriceCents(s string) int64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(v * 100))
}
