package model

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAccount_VerifyFold(t *testing.T) {
	acct := NewAccount("u1", "Ayesha", "PKR", d("100"), time.Now())
	if err := acct.Verify(); err != nil {
		t.Fatalf("fresh account should verify: %v", err)
	}

	acct.Transactions = append([]Transaction{
		{ID: "t2", Amount: d("40"), Direction: Debit, Description: "Buy USD"},
		{ID: "t1", Amount: d("25"), Direction: Credit, Description: "Ad Reward"},
	}, acct.Transactions...)
	acct.Balance = d("85")

	if err := acct.Verify(); err != nil {
		t.Fatalf("expected verify to pass, got %v", err)
	}
	if got := acct.Fold(); !got.Equal(d("85")) {
		t.Errorf("expected fold 85, got %s", got)
	}

	acct.Balance = d("86")
	err := acct.Verify()
	if err == nil || !strings.Contains(err.Error(), "diverges") {
		t.Errorf("expected divergence error, got %v", err)
	}
}

func TestAccount_VerifyHoldings(t *testing.T) {
	acct := NewAccount("u1", "", "PKR", d("100"), time.Now())
	acct.Holdings = []Holding{
		{Symbol: "USD", Quantity: d("1"), AvgBuyPrice: d("278.5")},
		{Symbol: "USD", Quantity: d("2"), AvgBuyPrice: d("280")},
	}
	if err := acct.Verify(); err == nil {
		t.Error("expected duplicate holding error")
	}

	acct.Holdings = []Holding{{Symbol: "USD", Quantity: decimal.Zero, AvgBuyPrice: d("278.5")}}
	if err := acct.Verify(); err == nil {
		t.Error("expected zero quantity error")
	}
}

func TestAccount_CloneIsDeep(t *testing.T) {
	acct := NewAccount("u1", "", "PKR", d("100"), time.Now())
	acct.Holdings = append(acct.Holdings, Holding{Symbol: "BTC", Quantity: d("0.5"), AvgBuyPrice: d("17800000")})

	cp := acct.Clone()
	cp.Holdings[0].Quantity = d("9")
	cp.Balance = d("1")

	if !acct.Holdings[0].Quantity.Equal(d("0.5")) {
		t.Errorf("clone shares holdings with original")
	}
	if !acct.Balance.Equal(d("100")) {
		t.Errorf("clone shares balance with original")
	}
}

func TestTransaction_Signed(t *testing.T) {
	tx := Transaction{Amount: d("12.5"), Direction: Debit}
	if !tx.Signed().Equal(d("-12.5")) {
		t.Errorf("expected -12.5, got %s", tx.Signed())
	}
	tx.Direction = Credit
	if !tx.Signed().Equal(d("12.5")) {
		t.Errorf("expected 12.5, got %s", tx.Signed())
	}
}
