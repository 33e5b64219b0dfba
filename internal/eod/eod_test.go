package eod

import (
	"encoding/csv"
	"os"
	"testing"

	"nse-paper-trader/internal/tradelog"
)

func TestSummarizeDayAggregatesFills(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	entries := []tradelog.Entry{
		{Portfolio: "swing", Symbol: "INFY", Side: "BUY", Shares: 100, Price: 100},
		{Portfolio: "swing", Symbol: "INFY", Side: "SELL", Reason: "TARGET_1", Shares: 40, Price: 103, PnL: 120},
		{Portfolio: "swing", Symbol: "INFY", Side: "SELL", Reason: "TARGET_2", Shares: 40, Price: 108, PnL: 320},
		{Portfolio: "positional", Symbol: "TCS", Side: "BUY", Shares: 50, Price: 200},
	}
	for _, e := range entries {
		if err := tradelog.Append(e); err != nil {
			t.Fatal(err)
		}
	}

	path, err := NewSummarizer().SummarizeToday()
	if err != nil {
		t.Fatal(err)
	}
	if path == "" {
		t.Fatal("Expected a CSV path")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// Header plus one row per portfolio/symbol pair, sorted.
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if rows[1][0] != "positional" || rows[1][1] != "TCS" {
		t.Errorf("Expected positional/TCS first, got %v", rows[1])
	}
	if rows[2][0] != "swing" || rows[2][1] != "INFY" {
		t.Errorf("Expected swing/INFY second, got %v", rows[2])
	}
	// INFY: 80 shares sold, realized 440.
	if rows[2][4] != "80" {
		t.Errorf("Expected sell qty 80, got %s", rows[2][4])
	}
	if rows[2][6] != "440.00" {
		t.Errorf("Expected realized pnl 440.00, got %s", rows[2][6])
	}
}

func TestSummarizeDayNoTrades(t *testing.T) {
	t.Setenv("TRADER_LOG_DIR", t.TempDir())

	path, err := NewSummarizer().SummarizeToday()
	if err != nil {
		t.Fatal(err)
	}
	if path != "" {
		t.Errorf("Expected no CSV without trades, got %s", path)
	}
}
