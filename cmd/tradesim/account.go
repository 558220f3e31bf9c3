package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"tradesim/config"
	"tradesim/internal/account"
	"tradesim/internal/ledger"
	"tradesim/internal/market"
	"tradesim/internal/model"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts in the configured store",
		Long: `Account commands work directly on the configured store. Prices come from
the latest snapshots published to Redis when the redis backend is used, and
from a freshly generated market otherwise.`,
	}

	var id string
	openCmd := &cobra.Command{
		Use:   "open <name>",
		Short: "Open an account with the opening balance",
		Args:  cobra.ExactArgs(1),
		RunE: withAccounts(func(ctx context.Context, svc *account.Service, args []string) error {
			acct, err := svc.Open(ctx, id, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("opened %s for %s with %s\n", acct.ID, acct.Name, ledger.FormatAmount(acct.Balance, acct.Currency))
			return nil
		}),
	}
	openCmd.Flags().StringVar(&id, "id", "", "Account id (default: generated)")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print balances, holdings and recent transactions",
		Args:  cobra.ExactArgs(1),
		RunE: withAccounts(func(ctx context.Context, svc *account.Service, args []string) error {
			acct, err := svc.Get(ctx, args[0])
			if err != nil {
				return err
			}
			v, err := svc.Valuation(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Print(valuationReport(acct, v))
			return nil
		}),
	}

	cmd.AddCommand(openCmd, showCmd, tradeCmd("buy"), tradeCmd("sell"))
	return cmd
}

func tradeCmd(op string) *cobra.Command {
	short := "Buy an instrument (macro: cash amount, equity: shares)"
	if op == "sell" {
		short = "Sell units of a held instrument"
	}
	return &cobra.Command{
		Use:   op + " <id> <kind> <symbol> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(4),
		RunE: withAccounts(func(ctx context.Context, svc *account.Service, args []string) error {
			kind, err := model.ParseKind(args[1])
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[3])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[3], err)
			}
			trade := svc.Buy
			if op == "sell" {
				trade = svc.Sell
			}
			delta, err := trade(ctx, args[0], kind, strings.ToUpper(args[2]), amount)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(delta)
		}),
	}
}

// withAccounts opens the configured store and a price source around fn.
func withAccounts(fn func(ctx context.Context, svc *account.Service, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		be, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer be.Close()

		quotes, err := loadQuotes(ctx, cfg, be)
		if err != nil {
			return err
		}
		svc := account.NewService(be.store, quotes,
			ledger.New(ledger.WithMinWithdrawal(cfg.MinWithdrawal)),
			account.Config{Currency: cfg.Currency, OpeningBalance: cfg.OpeningBalance})
		return fn(ctx, svc, args)
	}
}

func loadQuotes(ctx context.Context, cfg *config.Config, be *backend) (ledger.SnapshotQuotes, error) {
	mkt, err := market.New(market.Config{EquityCount: cfg.EquityCount, Seed: cfg.Seed})
	if err != nil {
		return nil, err
	}
	quotes := make(ledger.SnapshotQuotes, 2)
	for _, kind := range model.Kinds() {
		snap, _ := mkt.Latest(kind)
		if be.publisher != nil {
			if live, err := be.publisher.LatestSnapshot(ctx, kind); err == nil {
				snap = live
			} else {
				slog.Warn("no published snapshot, using generated prices", "kind", kind, "error", err)
			}
		}
		quotes[kind] = snap
	}
	return quotes, nil
}
