package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradesim/internal/model"
)

// Reward amounts paid by the earn flows.
var (
	AdRewardAmount      = decimal.NewFromInt(25)
	ReferralBonusAmount = decimal.NewFromInt(200)
)

// DailyRewardCycle is the length of the daily login streak before it wraps.
const DailyRewardCycle = 15

// CreditRequest is an external credit ready to be applied with Credit.
type CreditRequest struct {
	Category    model.Category  `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Apply credits the request to acct.
func (r CreditRequest) Apply(l *Ledger, acct *model.Account) (Delta, error) {
	return l.Credit(acct, r.Category, r.Amount, r.Description)
}

// Deposit records a user-reported deposit with its payment reference.
func Deposit(amount decimal.Decimal, tid string) CreditRequest {
	return CreditRequest{model.CategoryDeposit, amount, fmt.Sprintf("Deposit (TID: %s)", tid)}
}

// AdReward pays for one watched ad.
func AdReward() CreditRequest {
	return CreditRequest{model.CategoryAdReward, AdRewardAmount, "Ad Reward"}
}

// TaskReward pays for a completed task.
func TaskReward(title string, amount decimal.Decimal) CreditRequest {
	return CreditRequest{model.CategoryTaskReward, amount, "Task: " + title}
}

// ReferralBonus pays the referrer when referred signs up.
func ReferralBonus(referred string) CreditRequest {
	return CreditRequest{model.CategoryReferralBonus, ReferralBonusAmount, "Ref Bonus: " + referred}
}

// DailyReward pays day n of the login streak: n×10, where n counts from 1
// and wraps after DailyRewardCycle days.
func DailyReward(streak int) CreditRequest {
	day := DailyRewardDay(streak)
	return CreditRequest{
		Category:    model.CategoryDailyReward,
		Amount:      decimal.NewFromInt(int64(day * 10)),
		Description: fmt.Sprintf("Daily Reward (Day %d)", day),
	}
}

// DailyRewardDay maps a 1-based streak count onto the reward cycle.
func DailyRewardDay(streak int) int {
	if streak < 1 {
		return 1
	}
	return (streak-1)%DailyRewardCycle + 1
}
