package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"tick_trader/internal/modules/config"
	engsvc "tick_trader/internal/modules/engine/service"
	"tick_trader/internal/replay"
	"tick_trader/pkg/logger"
)

func main() {
	var (
		ticksPath = flag.String("ticks", "", "JSONL file with the recorded tick stream")
		coinsPath = flag.String("coins", "configs/coins.yaml", "coin params file")
		outPath   = flag.String("out", "", "write closed trades to this JSONL file")
		equity    = flag.Float64("equity", 0, "override initial equity")
		flatten   = flag.Bool("flatten", false, "close leftovers at the last price after the run")
	)
	flag.Parse()

	if *ticksPath == "" {
		log.Fatal("usage: replay -ticks <file> [-coins <file>] [-out <file>]")
	}
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("tick_trader_replay")

	set, err := config.LoadCoinParams(*coinsPath)
	if err != nil {
		log.Fatal(err)
	}

	engCfg := config.Defaults().Engine
	if *equity > 0 {
		engCfg.InitialEquity = *equity
	}

	var sink engsvc.TradeStore
	var sinkCloser *replay.TradeSink
	if *outPath != "" {
		s, err := replay.NewTradeSink(*outPath)
		if err != nil {
			log.Fatal(err)
		}
		sink, sinkCloser = s, s
	}

	ticks, err := replay.ReadTicks(*ticksPath)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("replaying %d ticks over %d symbols", len(ticks), len(set.Symbols()))

	ctx := context.Background()
	runner := replay.NewRunner(engCfg, set, sink)
	if err := runner.Run(ctx, ticks); err != nil {
		log.Fatal(err)
	}
	if *flatten {
		runner.Flatten(ctx)
	}

	p := runner.Performance()
	fmt.Printf("\n=== Replay results ===\n")
	fmt.Printf("Equity:        $%.2f (%+.2f%%)\n", p.AccountEquity, p.TotalReturnPct)
	fmt.Printf("Trades:        %d (%.1f/day)\n", p.TotalTrades, p.TradesPerDay)
	fmt.Printf("Win rate:      %.2f%%\n", p.WinRate)
	fmt.Printf("Profit factor: %.2f\n", p.ProfitFactor)
	fmt.Printf("Fees paid:     $%.2f\n", p.TotalFeesPaid)
	fmt.Printf("Max drawdown:  %.2f%%\n", p.MaxDrawdownPct)
	fmt.Printf("Open left:     %d (uPnL %+.2f)\n", p.OpenPositionCount, p.UnrealizedPnL)
	for _, st := range p.PerSymbol {
		fmt.Printf("  %-12s trades=%-4d win=%-4d net=%+.2f fees=%.2f\n",
			st.Symbol, st.Trades, st.Wins, st.NetPnL, st.FeesPaid)
	}

	if sinkCloser != nil {
		if err := sinkCloser.Close(); err != nil {
			log.Fatal(err)
		}
	}
}
