// Package profit computes locked cost basis and per-sale profit. All
// inputs and outputs are integer minor units; functions are pure and
// negative results are retained as losses.
package profit

import "github.com/resoldhq/ledgermirror/pkg/models"

// LockedCost is the cost basis locked in at sale time: purchase price
// plus every extra cost attached to the sale.
func LockedCost(purchasePrice int64, extraCosts []models.ExtraCost) int64 {
	total := purchasePrice
	for _, c := range extraCosts {
		total += c.Amount
	}
	return total
}

// GrossProfit is (salePrice + shippingCharged) minus all six cost
// terms. Discounts, refunds and chargebacks are cost-like deductions,
// not revenue adjustments; the sign convention matters to every
// downstream report.
func GrossProfit(salePrice, shippingCharged, cogs, shippingCost, platformFees, discounts, refunds, chargebacks int64) int64 {
	revenue := salePrice + shippingCharged
	costs := cogs + shippingCost + platformFees + discounts + refunds + chargebacks
	return revenue - costs
}

// GrossProfitForSale applies GrossProfit to an imported sale using its
// locked cost basis.
func GrossProfitForSale(s *models.Sale) int64 {
	cogs := LockedCost(s.PurchasePrice, s.ExtraCosts)
	return GrossProfit(s.SalePrice, s.ShippingCharged, cogs, s.ShippingCost, s.PlatformFees, s.Discounts, s.Refunds, s.Chargebacks)
}

// NetProfit subtracts period expenses from gross profit.
func NetProfit(grossProfit, periodExpenses int64) int64 {
	return grossProfit - periodExpenses
}
