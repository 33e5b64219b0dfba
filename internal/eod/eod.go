package eod

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"nse-paper-trader/internal/interfaces"
	"nse-paper-trader/internal/tradelog"
)

type eodSummarizer struct{}

var _ interfaces.EodSummarizer = (*eodSummarizer)(nil)

func NewSummarizer() interfaces.EodSummarizer {
	return &eodSummarizer{}
}

// aggRow aggregates one day's fills for a portfolio/symbol pair.
type aggRow struct {
	Portfolio   string
	Symbol      string
	BuyQty      int
	BuyValue    float64
	SellQty     int
	SellValue   float64
	RealizedPnL float64
}

func (e *eodSummarizer) SummarizeDay(t time.Time) (string, error) {
	inPath := todaysTradeFile(t)
	if _, err := os.Stat(inPath); err != nil {
		return "", nil
	}
	f, err := os.Open(inPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	aggs := map[string]*aggRow{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var entry tradelog.Entry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			continue
		}
		key := entry.Portfolio + "/" + entry.Symbol
		row := aggs[key]
		if row == nil {
			row = &aggRow{Portfolio: entry.Portfolio, Symbol: entry.Symbol}
			aggs[key] = row
		}
		switch entry.Side {
		case "BUY":
			row.BuyQty += entry.Shares
			row.BuyValue += float64(entry.Shares) * entry.Price
		case "SELL":
			row.SellQty += entry.Shares
			row.SellValue += float64(entry.Shares) * entry.Price
			row.RealizedPnL += entry.PnL
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if len(aggs) == 0 {
		return "", nil
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	outPath := eodCSVPath(t)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	if err := w.Write([]string{"portfolio", "symbol", "buy_qty", "buy_value", "sell_qty", "sell_value", "realized_pnl"}); err != nil {
		return "", err
	}
	for _, k := range keys {
		r := aggs[k]
		rec := []string{
			r.Portfolio,
			r.Symbol,
			strconv.Itoa(r.BuyQty),
			strconv.FormatFloat(r.BuyValue, 'f', 2, 64),
			strconv.Itoa(r.SellQty),
			strconv.FormatFloat(r.SellValue, 'f', 2, 64),
			strconv.FormatFloat(r.RealizedPnL, 'f', 2, 64),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return outPath, nil
}

func (e *eodSummarizer) SummarizeToday() (string, error) {
	return e.SummarizeDay(istNow())
}

func (e *eodSummarizer) ShouldRunNow() (bool, string) {
	now := istNow()
	csvPath := eodCSVPath(now)
	if now.Before(marketCloseTime(now)) {
		return false, csvPath
	}
	if _, err := os.Stat(csvPath); err == nil {
		return false, csvPath
	}
	return true, csvPath
}
