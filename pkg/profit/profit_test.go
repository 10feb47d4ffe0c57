package profit

import (
	"testing"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

func TestLockedCost(t *testing.T) {
	if got := LockedCost(2000, nil); got != 2000 {
		t.Errorf("LockedCost with no extras = %d, want 2000", got)
	}

	extras := []models.ExtraCost{
		{Label: "shipping supplies", Amount: 300},
		{Label: "authentication", Amount: 200},
	}
	if got := LockedCost(2000, extras); got != 2500 {
		t.Errorf("LockedCost with extras = %d, want 2500", got)
	}
}

func TestGrossProfit(t *testing.T) {
	// $80 sale + $10 shipping charged, against $25 cogs, $8 label,
	// $12 fees: $45 gross profit
	got := GrossProfit(8000, 1000, 2500, 800, 1200, 0, 0, 0)
	if got != 4500 {
		t.Errorf("GrossProfit = %d, want 4500", got)
	}

	// $100 sale + $5 shipping charged, against $40 cogs, $3 label,
	// $8 fees: $54 gross profit
	got = GrossProfit(10000, 500, 4000, 300, 800, 0, 0, 0)
	if got != 5400 {
		t.Errorf("GrossProfit = %d, want 5400", got)
	}
}

func TestGrossProfitRetainsLosses(t *testing.T) {
	// refunded below cost: the loss is reported, never clamped to zero
	got := GrossProfit(3000, 0, 2500, 800, 600, 0, 3000, 0)
	if got >= 0 {
		t.Fatalf("GrossProfit = %d, expected a negative loss", got)
	}
	if got != -3900 {
		t.Errorf("GrossProfit = %d, want -3900", got)
	}
}

func TestGrossProfitForSale(t *testing.T) {
	s := &models.Sale{
		SalePrice:       8000,
		ShippingCharged: 1000,
		ShippingCost:    800,
		PlatformFees:    1000,
		Discounts:       100,
		Refunds:         0,
		Chargebacks:     0,
		PurchasePrice:   2000,
		ExtraCosts: []models.ExtraCost{
			{Label: "poly mailer", Amount: 100},
		},
	}

	// 9000 revenue - (2100 cogs + 800 shipping + 1000 fees + 100 discount)
	if got := GrossProfitForSale(s); got != 5000 {
		t.Errorf("GrossProfitForSale = %d, want 5000", got)
	}
}

func TestNetProfit(t *testing.T) {
	if got := NetProfit(4500, 2000); got != 2500 {
		t.Errorf("NetProfit = %d, want 2500", got)
	}
	if got := NetProfit(1000, 3000); got != -2000 {
		t.Errorf("NetProfit = %d, want -2000", got)
	}
}
