package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"ironbook/internal/market"
	"ironbook/internal/net"
)

func main() {
	address := flag.String("address", "0.0.0.0", "listen address")
	port := flag.Int("port", 9001, "listen port")
	symbols := flag.String("symbols", "AAPL", "comma-separated symbols to create at startup")
	checkExpiry := flag.Duration("check-expiry-interval", 5*time.Second, "GTD expiry sweep interval; <=0 disables")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	mgr := market.NewManager(market.Options{
		MaxTradeHistory:     10000,
		CheckExpiryInterval: *checkExpiry,
		MakerFeeRate:        decimal.Zero,
		TakerFeeRate:        decimal.Zero,
	})

	for _, symbol := range splitSymbols(*symbols) {
		if _, err := mgr.CreateMarket(symbol, market.Options{
			MaxTradeHistory:     10000,
			CheckExpiryInterval: *checkExpiry,
			MakerFeeRate:        decimal.Zero,
			TakerFeeRate:        decimal.Zero,
		}); err != nil {
			log.Fatal().Err(err).Str("symbol", symbol).Msg("unable to create market")
		}
	}

	srv, err := net.New(*address, *port, mgr)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to construct server")
	}

	go srv.Run(ctx)
	<-ctx.Done()
}

func splitSymbols(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
