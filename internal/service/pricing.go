package service

import (
	"github.com/DotZohaib/ShopSphere/internal/domain"
	"github.com/shopspring/decimal"
)

// ComputeTotal sums effective price times quantity over resolved lines.
func ComputeTotal(lines []domain.ResolvedLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal())
	}
	return total
}
