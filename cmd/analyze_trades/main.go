// Command analyze_trades reports closed paper-position performance
// grouped by symbol, to spot consistently losing symbols worth
// excluding from the analysis timeframe's universe.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

type symbolStats struct {
	Symbol        string
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
	TotalWins     float64
	TotalLosses   float64
	WinRate       float64
	AvgPnL        float64
}

func main() {
	dbHost := getEnv("POSTGRES_HOST", "localhost")
	dbPort := getEnv("POSTGRES_PORT", "5432")
	dbUser := getEnv("POSTGRES_USER", "cryptosignal")
	dbPass := getEnv("POSTGRES_PASSWORD", "")
	dbName := getEnv("POSTGRES_DATABASE", "cryptosignal")

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		dbUser, dbPass, dbHost, dbPort, dbName)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		fmt.Printf("failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT symbol, COALESCE(realized_pnl, 0)
		FROM paper_positions
		WHERE state = 'CLOSED'
	`)
	if err != nil {
		fmt.Printf("query failed: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	stats := make(map[string]*symbolStats)
	for rows.Next() {
		var symbol string
		var pnl float64
		if err := rows.Scan(&symbol, &pnl); err != nil {
			fmt.Printf("scan error: %v\n", err)
			continue
		}
		s, ok := stats[symbol]
		if !ok {
			s = &symbolStats{Symbol: symbol}
			stats[symbol] = s
		}
		s.TotalTrades++
		s.TotalPnL += pnl
		if pnl > 0 {
			s.WinningTrades++
			s.TotalWins += pnl
		} else if pnl < 0 {
			s.LosingTrades++
			s.TotalLosses += pnl
		}
	}

	if len(stats) == 0 {
		fmt.Println("no closed positions found yet")
		return
	}

	var sorted []*symbolStats
	for _, s := range stats {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
		s.AvgPnL = s.TotalPnL / float64(s.TotalTrades)
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TotalPnL > sorted[j].TotalPnL })

	fmt.Println("trade performance by symbol")
	fmt.Println("===========================")
	fmt.Printf("%-12s %7s %8s %8s %13s %13s %9s\n",
		"symbol", "trades", "winners", "losers", "total pnl", "avg pnl", "win rate")

	var grandTotal float64
	var grandTrades, grandWins int
	for _, s := range sorted {
		fmt.Printf("%-12s %7d %8d %8d %+13.2f %+13.2f %8.1f%%\n",
			s.Symbol, s.TotalTrades, s.WinningTrades, s.LosingTrades, s.TotalPnL, s.AvgPnL, s.WinRate)
		grandTotal += s.TotalPnL
		grandTrades += s.TotalTrades
		grandWins += s.WinningTrades
	}

	grandWinRate := 0.0
	if grandTrades > 0 {
		grandWinRate = float64(grandWins) / float64(grandTrades) * 100
	}
	fmt.Printf("\ntotal: %d trades, %+.2f pnl, %.1f%% win rate\n", grandTrades, grandTotal, grandWinRate)

	fmt.Println("\nblacklist candidates (pnl < -20, win rate < 45%, trades >= 3):")
	none := true
	for i := len(sorted) - 1; i >= 0; i-- {
		s := sorted[i]
		if s.TotalPnL < -20 && s.WinRate < 45 && s.TotalTrades >= 3 {
			fmt.Printf("  - %s (pnl %.2f, win rate %.1f%%, trades %d)\n", s.Symbol, s.TotalPnL, s.WinRate, s.TotalTrades)
			none = false
		}
	}
	if none {
		fmt.Println("  none identified")
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
