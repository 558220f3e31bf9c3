package main

import (
	"bytes"
	"fmt"

	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"

	"tradesim/internal/ledger"
	"tradesim/internal/model"
)

func instrumentTable(title string, instruments []model.Instrument) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	doc.H2(title)

	rows := make([][]string, 0, len(instruments))
	for _, in := range instruments {
		rows = append(rows, []string{
			in.Symbol, in.Name, string(in.Class),
			in.Price.String(), in.ChangePercent.StringFixed(2) + "%", string(in.Trend),
		})
	}
	doc.Table(md.TableSet{
		Header: []string{"Symbol", "Name", "Class", "Price", "Change", "Trend"},
		Rows:   rows,
	})
	return doc.String()
}

func valuationReport(acct *model.Account, v ledger.Valuation) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)
	amt := func(d decimal.Decimal) string { return ledger.FormatAmount(d, v.Currency) }

	doc.H1(fmt.Sprintf("%s (%s)", acct.Name, acct.ID))
	doc.PlainText(fmt.Sprintf("Cash: %s  Net worth: %s  Total P&L: %s",
		amt(v.Cash), amt(v.NetWorth), amt(v.TotalPnL)))

	if len(v.Positions) > 0 {
		doc.H2("Holdings")
		rows := make([][]string, 0, len(v.Positions))
		for _, p := range v.Positions {
			price := p.Price.String()
			if p.Stale {
				price += " (stale)"
			}
			rows = append(rows, []string{
				p.Symbol, string(p.Kind), p.Quantity.String(), p.AvgBuyPrice.StringFixed(2),
				price, amt(p.MarketValue), amt(p.UnrealizedPnL),
			})
		}
		doc.Table(md.TableSet{
			Header: []string{"Symbol", "Kind", "Qty", "Avg", "Price", "Value", "P&L"},
			Rows:   rows,
		})
	}

	if n := min(len(acct.Transactions), 10); n > 0 {
		doc.H2("Recent transactions")
		rows := make([][]string, 0, n)
		for _, tx := range acct.Transactions[:n] {
			rows = append(rows, []string{
				tx.Date.Format("2006-01-02 15:04"), string(tx.Direction), string(tx.Category),
				amt(tx.Amount), tx.Description,
			})
		}
		doc.Table(md.TableSet{
			Header: []string{"Date", "Dir", "Category", "Amount", "Description"},
			Rows:   rows,
		})
	}
	return doc.String()
}
