package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/splitbot/config"
	"github.com/rustyeddy/splitbot/ledger"
)

func newLedgerCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "ledger [instrument-id]",
		Short: "Print persisted tier ledger records",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rc.ConfigPath)
			if err != nil {
				return err
			}

			store, err := ledger.NewSQLite(cfg.Store.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.LoadAll()
			if err != nil {
				return err
			}

			if len(args) == 1 {
				rec, ok := recs[args[0]]
				if !ok {
					return fmt.Errorf("no ledger record for %q", args[0])
				}
				printRecord(rec)
				return nil
			}

			ids := make([]string, 0, len(recs))
			for instrumentID := range recs {
				ids = append(ids, instrumentID)
			}
			sort.Strings(ids)
			for _, instrumentID := range ids {
				printRecord(recs[instrumentID])
				fmt.Println()
			}
			return nil
		},
	}
}

func printRecord(rec *ledger.Record) {
	fmt.Printf("%s (%s)  ready=%v  realized=%.0f\n", rec.ID, rec.Name, rec.Ready, rec.RealizedPnLTotal)
	for _, t := range rec.Tiers {
		if !t.Filled && len(t.SellHistory) == 0 {
			fmt.Printf("  tier %d: empty\n", t.Number)
			continue
		}
		fmt.Printf("  tier %d: filled=%v entry=%.2f amount=%d/%d since %s\n",
			t.Number, t.Filled, t.EntryPrice, t.CurrentAmount, t.EntryAmount,
			t.EntryDate.Format("2006-01-02"))
		for _, s := range t.SellHistory {
			tag := ""
			if s.Manual {
				tag = " (manual)"
			}
			fmt.Printf("    sold %d @ %.2f profit=%.0f on %s%s\n",
				s.Amount, s.Price, s.Profit, s.Date.Format("2006-01-02"), tag)
		}
	}
	if len(rec.RealizedPnLByMonth) > 0 {
		months := make([]string, 0, len(rec.RealizedPnLByMonth))
		for m := range rec.RealizedPnLByMonth {
			months = append(months, m)
		}
		sort.Strings(months)
		for _, m := range months {
			fmt.Printf("  %s: %.0f\n", m, rec.RealizedPnLByMonth[m])
		}
	}
}
