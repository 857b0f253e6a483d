package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/splitbot/broker/kabu"
	"github.com/rustyeddy/splitbot/config"
	"github.com/rustyeddy/splitbot/indicators"
	"github.com/rustyeddy/splitbot/plan"
	"github.com/rustyeddy/splitbot/regime"
)

// plan fetches live data and prints the tier plan one instrument would get
// this cycle, without touching the ledger or submitting anything.
func newPlanCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <instrument-id>",
		Short: "Print the tier plan an instrument would get this cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(rc)
			instrumentID := args[0]

			cfg, err := config.Load(rc.ConfigPath)
			if err != nil {
				return err
			}
			var found bool
			instCfg := cfg.Instruments[0]
			for _, ic := range cfg.Instruments {
				if ic.ID == instrumentID {
					instCfg, found = ic, true
					break
				}
			}
			if !found {
				return fmt.Errorf("instrument %q not in config", instrumentID)
			}

			kcfg, err := kabu.LoadConfig()
			if err != nil {
				return err
			}
			brk := kabu.NewAdapter(kcfg, log)
			ctx := context.Background()

			indexSeries, err := brk.GetBroadMarketSeries(ctx, cfg.Account.IndexID, cfg.Strategy.Lookback)
			if err != nil {
				return err
			}
			state := regime.Classify(indexSeries)

			series, err := brk.GetIndicatorSeries(ctx, instrumentID, cfg.Strategy.Lookback)
			if err != nil {
				return err
			}
			snap, err := indicators.BuildSnapshot(instrumentID, series, cfg.Strategy.TierCount,
				cfg.Strategy.RecentPeriod, cfg.Strategy.RecentWeight)
			if err != nil {
				return err
			}

			equity, err := brk.GetEquity(ctx)
			if err != nil {
				return err
			}

			params := regime.ParamsFor(state, instCfg.Type)
			budget := plan.Budget(equity, cfg.Account.SleeveRatio, instCfg.Weight)
			p, err := plan.Build(snap, params, instCfg, state, budget, cfg.Strategy.TierCount)
			if err != nil {
				return err
			}

			fmt.Printf("%s  regime=%s score=%.0f  price=%.2f step=%d rsi=%.1f pullback=%.1f%%\n",
				instrumentID, state.Regime, state.Score, snap.Price, snap.Step, snap.RSI, snap.PullbackPct)
			fmt.Printf("budget=%.0f first_ratio=%.2f\n", budget, plan.FirstInvestRatio(instCfg, params))
			for _, tp := range p.Tiers {
				fmt.Printf("  tier %d: invest=%d target=%+.3f trigger=%+.3f\n",
					tp.Tier, tp.InvestMoney, tp.TargetRate, tp.TriggerRate)
			}
			return nil
		},
	}
}
