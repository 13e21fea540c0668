// Command analyze_confidence buckets closed paper positions by the
// signal confidence recorded at entry and reports win rate / PnL per
// bucket, to check whether the enricher's confidence score actually
// tracks realized outcomes.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type closedTrade struct {
	Symbol      string
	Confidence  float64
	RealizedPnL float64
	Side        string
	CloseTime   time.Time
}

type confidenceBucket struct {
	MinConf       float64
	MaxConf       float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	TotalPnL      float64
	AvgPnL        float64
	WinRate       float64
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

	fmt.Println("confidence calibration report")
	fmt.Println("==============================")

	rows, err := pool.Query(ctx, `
		SELECT symbol, confidence, COALESCE(realized_pnl, 0), side, close_time
		FROM paper_positions
		WHERE state = 'CLOSED'
		ORDER BY close_time DESC
	`)
	if err != nil {
		fmt.Printf("query failed: %v\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	var trades []closedTrade
	for rows.Next() {
		var t closedTrade
		var closeTime *time.Time
		if err := rows.Scan(&t.Symbol, &t.Confidence, &t.RealizedPnL, &t.Side, &closeTime); err != nil {
			fmt.Printf("scan error: %v\n", err)
			continue
		}
		if closeTime != nil {
			t.CloseTime = *closeTime
		}
		trades = append(trades, t)
	}

	if len(trades) == 0 {
		fmt.Println("no closed positions found yet")
		return
	}

	fmt.Printf("analyzing %d closed positions\n\n", len(trades))

	buckets := []confidenceBucket{
		{MinConf: 0.00, MaxConf: 0.50},
		{MinConf: 0.50, MaxConf: 0.65},
		{MinConf: 0.65, MaxConf: 0.80},
		{MinConf: 0.80, MaxConf: 1.01},
	}

	for _, t := range trades {
		for i := range buckets {
			if t.Confidence >= buckets[i].MinConf && t.Confidence < buckets[i].MaxConf {
				buckets[i].TotalTrades++
				buckets[i].TotalPnL += t.RealizedPnL
				if t.RealizedPnL > 0 {
					buckets[i].WinningTrades++
				} else if t.RealizedPnL < 0 {
					buckets[i].LosingTrades++
				}
				break
			}
		}
	}

	for i := range buckets {
		if buckets[i].TotalTrades > 0 {
			buckets[i].AvgPnL = buckets[i].TotalPnL / float64(buckets[i].TotalTrades)
			buckets[i].WinRate = float64(buckets[i].WinningTrades) / float64(buckets[i].TotalTrades) * 100
		}
	}

	fmt.Printf("%-16s %7s %8s %8s %13s %13s %9s\n",
		"confidence", "trades", "winners", "losers", "total pnl", "avg pnl", "win rate")
	for _, b := range buckets {
		fmt.Printf("%5.0f%% - %5.0f%% %7d %8d %8d %+13.2f %+13.2f %8.1f%%\n",
			b.MinConf*100, b.MaxConf*100, b.TotalTrades, b.WinningTrades, b.LosingTrades,
			b.TotalPnL, b.AvgPnL, b.WinRate)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
