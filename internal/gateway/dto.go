package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradesim/internal/ledger"
	"tradesim/internal/model"
)

type openAccountRequest struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// tradeRequest carries a buy or sell. For macro buys Amount is the cash to
// spend; everywhere else it is a unit quantity.
type tradeRequest struct {
	Kind   string          `json:"kind"`
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

// creditRequest selects one of the earn or deposit flows. Only the fields
// of the chosen category are read.
type creditRequest struct {
	Category model.Category  `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	TID      string          `json:"tid,omitempty"`
	Title    string          `json:"title,omitempty"`
	Streak   int             `json:"streak,omitempty"`
	Referred string          `json:"referred,omitempty"`
}

func (r creditRequest) toLedger() (ledger.CreditRequest, error) {
	switch model.Category(strings.ToUpper(string(r.Category))) {
	case model.CategoryDeposit:
		if strings.TrimSpace(r.TID) == "" {
			return ledger.CreditRequest{}, fmt.Errorf("deposit requires tid")
		}
		return ledger.Deposit(r.Amount, r.TID), nil
	case model.CategoryAdReward:
		return ledger.AdReward(), nil
	case model.CategoryTaskReward:
		if strings.TrimSpace(r.Title) == "" {
			return ledger.CreditRequest{}, fmt.Errorf("task reward requires title")
		}
		return ledger.TaskReward(r.Title, r.Amount), nil
	case model.CategoryDailyReward:
		return ledger.DailyReward(r.Streak), nil
	case model.CategoryReferralBonus:
		if strings.TrimSpace(r.Referred) == "" {
			return ledger.CreditRequest{}, fmt.Errorf("referral bonus requires referred")
		}
		return ledger.ReferralBonus(r.Referred), nil
	}
	return ledger.CreditRequest{}, fmt.Errorf("unsupported credit category %q", r.Category)
}

type withdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

type marketPage struct {
	Kind        model.Kind         `json:"kind"`
	Seq         int64              `json:"seq"`
	At          time.Time          `json:"at"`
	Total       int                `json:"total"`
	Offset      int                `json:"offset"`
	Instruments []model.Instrument `json:"instruments"`
}

type universeStats struct {
	Seq  int64     `json:"seq"`
	At   time.Time `json:"at"`
	Size int       `json:"size"`
}

type statsResponse struct {
	Clients   int                          `json:"clients"`
	Universes map[model.Kind]universeStats `json:"universes"`
	EmitLag   LagSummary                   `json:"emit_lag"`
	Uptime    string                       `json:"uptime"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
