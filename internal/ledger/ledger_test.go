package ledger

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"tradesim/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLedger() *Ledger {
	n := 0
	return New(
		WithClock(func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }),
		WithIDs(func() (string, error) {
			n++
			return fmt.Sprintf("tx-%04d", n), nil
		}),
	)
}

func newAccount(balance string) *model.Account {
	return model.NewAccount("acct-1", "Ayesha", "PKR", d(balance), time.Now())
}

func usd(price string) model.Instrument {
	return model.NewInstrument("USD", "US Dollar", model.ClassForex, d(price))
}

func stock(price string) model.Instrument {
	return model.NewInstrument("MEEB-101", "Meezan Bank", model.ClassEquity, d(price))
}

func TestBuy_InsufficientBalanceLeavesAccountUntouched(t *testing.T) {
	l := testLedger()
	acct := newAccount("100")

	_, err := l.Buy(acct, usd("278.50"), d("500"))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if !acct.Balance.Equal(d("100")) {
		t.Errorf("balance changed to %s", acct.Balance)
	}
	if len(acct.Transactions) != 0 || len(acct.Holdings) != 0 {
		t.Errorf("expected no mutation, got %d transactions %d holdings", len(acct.Transactions), len(acct.Holdings))
	}
}

func TestBuy_MacroByAmount(t *testing.T) {
	l := testLedger()
	acct := newAccount("100")

	delta, err := l.Buy(acct, usd("278.50"), d("50"))
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !acct.Balance.Equal(d("50")) {
		t.Errorf("expected balance 50, got %s", acct.Balance)
	}
	h := acct.Holdings[0]
	if !h.Quantity.Round(4).Equal(d("0.1795")) {
		t.Errorf("expected quantity ≈0.1795, got %s", h.Quantity)
	}
	if !h.AvgBuyPrice.Equal(d("278.50")) {
		t.Errorf("expected avg 278.50, got %s", h.AvgBuyPrice)
	}
	if h.Name != "US Dollar" || h.Kind != model.KindMacro {
		t.Errorf("unexpected holding identity %+v", h)
	}
	tx := acct.Transactions[0]
	if tx.Description != "Buy USD" || tx.Direction != model.Debit || !tx.Amount.Equal(d("50")) {
		t.Errorf("unexpected transaction %+v", tx)
	}
	if delta.Transaction.ID != tx.ID || !delta.Amount.Equal(d("50")) {
		t.Errorf("delta does not match transaction: %+v", delta)
	}
	if err := acct.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestBuy_BlendsAveragePrice(t *testing.T) {
	l := testLedger()
	acct := newAccount("1000")
	acct.Holdings = []model.Holding{{Symbol: "USD", Name: "US Dollar", Kind: model.KindMacro, Quantity: d("1.0"), AvgBuyPrice: d("278.50")}}

	if _, err := l.Buy(acct, usd("280.00"), d("278.50")); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	h := acct.Holdings[0]
	if !h.Quantity.Round(3).Equal(d("1.995")) {
		t.Errorf("expected quantity ≈1.995, got %s", h.Quantity)
	}
	if !h.AvgBuyPrice.Round(2).Equal(d("279.25")) {
		t.Errorf("expected avg ≈279.25, got %s", h.AvgBuyPrice)
	}
	if len(acct.Holdings) != 1 {
		t.Errorf("expected a single holding, got %d", len(acct.Holdings))
	}
}

func TestBuy_EquityShares(t *testing.T) {
	l := testLedger()
	acct := newAccount("1000")

	if _, err := l.Buy(acct, stock("120"), d("2.5")); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity for fractional shares, got %v", err)
	}
	if _, err := l.Buy(acct, stock("120"), d("0")); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity for zero, got %v", err)
	}
	if _, err := l.Buy(acct, stock("120"), d("3")); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !acct.Balance.Equal(d("640")) {
		t.Errorf("expected balance 640, got %s", acct.Balance)
	}
	if acct.Transactions[0].Description != "Buy Stock MEEB-101" {
		t.Errorf("unexpected description %q", acct.Transactions[0].Description)
	}
}

func TestSell_Partial(t *testing.T) {
	l := testLedger()
	acct := newAccount("0")
	acct.Holdings = []model.Holding{{Symbol: "MEEB-101", Name: "Meezan Bank", Kind: model.KindEquity, Quantity: d("5"), AvgBuyPrice: d("100")}}

	delta, err := l.Sell(acct, stock("120"), d("2"))
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if !delta.Amount.Equal(d("240")) || !acct.Balance.Equal(d("240")) {
		t.Errorf("expected credit 240, got delta %s balance %s", delta.Amount, acct.Balance)
	}
	h := acct.Holdings[0]
	if !h.Quantity.Equal(d("3")) || !h.AvgBuyPrice.Equal(d("100")) {
		t.Errorf("expected 3 @ 100, got %s @ %s", h.Quantity, h.AvgBuyPrice)
	}
	if !delta.RealizedPnL.Equal(d("40")) || !acct.RealizedPnL.Equal(d("40")) {
		t.Errorf("expected realized 40, got %s / %s", delta.RealizedPnL, acct.RealizedPnL)
	}
	if delta.Closed {
		t.Error("partial sale reported as closed")
	}
	if tx := acct.Transactions[0]; tx.Description != "Sell Stock MEEB-101" || tx.Direction != model.Credit {
		t.Errorf("unexpected transaction %+v", tx)
	}
}

func TestSell_OversellClampsToHolding(t *testing.T) {
	l := testLedger()
	acct := newAccount("0")
	acct.Holdings = []model.Holding{{Symbol: "MEEB-101", Name: "Meezan Bank", Kind: model.KindEquity, Quantity: d("5"), AvgBuyPrice: d("100")}}

	delta, err := l.Sell(acct, stock("120"), d("9"))
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if !delta.Quantity.Equal(d("5")) || !acct.Balance.Equal(d("600")) {
		t.Errorf("expected 5 sold for 600, got %s for %s", delta.Quantity, acct.Balance)
	}
	if len(acct.Holdings) != 0 || !delta.Closed {
		t.Errorf("expected holding removed, got %+v", acct.Holdings)
	}
}

func TestSell_Errors(t *testing.T) {
	l := testLedger()
	acct := newAccount("100")

	if _, err := l.Sell(acct, usd("278.50"), d("1")); !errors.Is(err, ErrNoPosition) {
		t.Errorf("expected ErrNoPosition, got %v", err)
	}
	if _, err := l.Sell(acct, usd("278.50"), d("-1")); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := l.Sell(acct, model.Instrument{Symbol: "NOPE"}, d("1")); !errors.Is(err, ErrUnknownInstrument) {
		t.Errorf("expected ErrUnknownInstrument, got %v", err)
	}
	if len(acct.Transactions) != 0 {
		t.Errorf("failed sells appended %d transactions", len(acct.Transactions))
	}
}

func TestCreditAndWithdraw(t *testing.T) {
	l := testLedger()
	acct := newAccount("100")

	if _, err := AdReward().Apply(l, acct); err != nil {
		t.Fatalf("AdReward: %v", err)
	}
	if _, err := Deposit(d("1000"), "TX123").Apply(l, acct); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !acct.Balance.Equal(d("1125")) {
		t.Errorf("expected 1125, got %s", acct.Balance)
	}
	if got := acct.Transactions[0].Description; got != "Deposit (TID: TX123)" {
		t.Errorf("unexpected newest description %q", got)
	}

	if _, err := l.Withdraw(acct, d("500"), "JazzCash"); !errors.Is(err, ErrBelowMinimum) {
		t.Errorf("expected ErrBelowMinimum, got %v", err)
	}
	if _, err := l.Withdraw(acct, d("2000"), "JazzCash"); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, err := l.Withdraw(acct, d("900"), "JazzCash"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if !acct.Balance.Equal(d("225")) {
		t.Errorf("expected 225, got %s", acct.Balance)
	}
	if tx := acct.Transactions[0]; tx.Category != model.CategoryWithdrawal || tx.Description != "Withdraw: JazzCash" {
		t.Errorf("unexpected withdrawal %+v", tx)
	}
	if _, err := l.Credit(acct, model.CategoryTrade, d("10"), "sneaky"); err == nil {
		t.Error("expected TRADE credit to be rejected")
	}
	if err := acct.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestDailyReward(t *testing.T) {
	cases := map[int]string{1: "10", 3: "30", 15: "150", 16: "10", 0: "10"}
	for streak, want := range cases {
		r := DailyReward(streak)
		if !r.Amount.Equal(d(want)) {
			t.Errorf("streak %d: amount %s, want %s", streak, r.Amount, want)
		}
	}
	if got := DailyReward(17).Description; got != "Daily Reward (Day 2)" {
		t.Errorf("unexpected description %q", got)
	}
}

func TestTransactionsNewestFirst(t *testing.T) {
	l := testLedger()
	acct := newAccount("100")
	for i := 0; i < 3; i++ {
		if _, err := AdReward().Apply(l, acct); err != nil {
			t.Fatal(err)
		}
	}
	if acct.Transactions[0].ID != "tx-0003" || acct.Transactions[2].ID != "tx-0001" {
		t.Errorf("expected newest first, got %s..%s", acct.Transactions[0].ID, acct.Transactions[2].ID)
	}
}

func TestNew_UsesTimeOrderedIDs(t *testing.T) {
	l := New()
	acct := newAccount("100")
	for i := 0; i < 2; i++ {
		if _, err := AdReward().Apply(l, acct); err != nil {
			t.Fatal(err)
		}
	}
	newer, older := acct.Transactions[0].ID, acct.Transactions[1].ID
	if len(newer) != 36 || newer <= older {
		t.Errorf("expected increasing UUIDv7 ids, got %s then %s", older, newer)
	}
}

func TestBuy_AmountTooSmallForAnyUnits(t *testing.T) {
	l := testLedger()
	acct := newAccount("1000")
	btc := model.NewInstrument("BTC", "Bitcoin", model.ClassCrypto, d("17800000"))

	for _, amt := range []string{"0.0000000001", "0.00000000000000001"} {
		if _, err := l.Buy(acct, btc, d(amt)); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("Buy(%s): expected ErrInvalidQuantity, got %v", amt, err)
		}
	}
	if !acct.Balance.Equal(d("1000")) || len(acct.Transactions) != 0 || len(acct.Holdings) != 0 {
		t.Errorf("rejected buys mutated the account: %+v", acct)
	}
	if err := acct.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

// amount draws a positive decimal spanning whole units down to far below
// one minor unit.
func amount(rt *rapid.T, label string) decimal.Decimal {
	mant := int64(rapid.IntRange(1, 99999).Draw(rt, label+"_mant"))
	exp := int32(rapid.IntRange(-20, 2).Draw(rt, label+"_exp"))
	return decimal.New(mant, exp)
}

// The balance always equals the opening balance plus the fold of every
// transaction, whatever sequence of operations succeeds or fails.
func TestLedger_FoldInvariant(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		l := testLedger()
		acct := newAccount("1000")
		insts := []model.Instrument{usd("278.50"), stock("120"), model.NewInstrument("BTC", "Bitcoin", model.ClassCrypto, d("17800000"))}

		steps := rapid.IntRange(1, 40).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			inst := rapid.SampledFrom(insts).Draw(rt, "inst")
			price := decimal.NewFromInt(int64(rapid.IntRange(5, 500).Draw(rt, "price")))
			if inst.Class == model.ClassCrypto {
				price = price.Mul(decimal.NewFromInt(100000))
			}
			inst.Price = price
			qty := decimal.NewFromInt(int64(rapid.IntRange(0, 20).Draw(rt, "qty")))

			before := acct.Clone()
			var err error
			switch rapid.IntRange(0, 5).Draw(rt, "op") {
			case 0:
				_, err = l.Buy(acct, inst, qty)
			case 1:
				_, err = l.Buy(acct, inst, amount(rt, "buy"))
			case 2:
				_, err = l.Sell(acct, inst, qty)
			case 3:
				if i := acct.Holding(inst.Symbol); i >= 0 {
					_, err = l.Sell(acct, inst, acct.Holdings[i].Quantity.Mul(decimal.NewFromFloat(0.5)))
				}
			case 4:
				_, err = l.Credit(acct, model.CategoryTaskReward, amount(rt, "credit"), "Task: quiz")
			case 5:
				_, err = l.Withdraw(acct, qty.Mul(decimal.NewFromInt(100)), "Bank")
			}
			if err != nil && (len(acct.Transactions) != len(before.Transactions) || !acct.Balance.Equal(before.Balance)) {
				rt.Fatalf("failed op mutated account: %v", err)
			}
			for _, h := range acct.Holdings {
				if !h.Quantity.IsPositive() {
					rt.Fatalf("step %d: %s held with quantity %s", i, h.Symbol, h.Quantity)
				}
			}
			if err := acct.Verify(); err != nil {
				rt.Fatalf("step %d: %v", i, err)
			}
		}
	})
}

func TestBuy_AverageWithinFills(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		l := testLedger()
		acct := newAccount("100000000")
		p1 := decimal.NewFromInt(int64(rapid.IntRange(5, 15000).Draw(rt, "p1")))
		p2 := decimal.NewFromInt(int64(rapid.IntRange(5, 15000).Draw(rt, "p2")))
		q1 := decimal.NewFromInt(int64(rapid.IntRange(1, 100).Draw(rt, "q1")))
		q2 := decimal.NewFromInt(int64(rapid.IntRange(1, 100).Draw(rt, "q2")))

		if _, err := l.Buy(acct, stock(p1.String()), q1); err != nil {
			rt.Fatal(err)
		}
		if _, err := l.Buy(acct, stock(p2.String()), q2); err != nil {
			rt.Fatal(err)
		}
		avg := acct.Holdings[0].AvgBuyPrice
		lo, hi := decimal.Min(p1, p2), decimal.Max(p1, p2)
		if avg.LessThan(lo) || avg.GreaterThan(hi) {
			rt.Fatalf("avg %s outside [%s, %s]", avg, lo, hi)
		}
		if !acct.Holdings[0].Quantity.Equal(q1.Add(q2)) {
			rt.Fatalf("quantity %s, want %s", acct.Holdings[0].Quantity, q1.Add(q2))
		}
	})
}
