package services

import (
	domain "github.com/adega-club/api/internal/domain"
)

// QuoteSelection prices the current selection. Totals stay zero until every
// slot is filled; an incomplete selection is a normal state, not an error.
func QuoteSelection(selection domain.ComboSelection, currency string) domain.ComboQuote {
	quote := domain.ComboQuote{
		Currency:            currency,
		DiscountBasisPoints: domain.ComboDiscountBasisPoints,
	}
	if !selection.IsComplete() {
		return quote
	}

	lines := make([]domain.ComboLine, 0, 2+len(selection.IceSlots))
	lines = append(lines, priceLine(*selection.Spirit, domain.RoleSpirit, 1))
	lines = append(lines, priceLine(*selection.EnergyDrink, selection.PackOption.Role(), selection.PackOption.Quantity()))
	for _, slot := range selection.IceSlots {
		lines = append(lines, priceLine(*slot.Product, domain.RoleIce, 1))
	}

	var original int64
	for _, line := range lines {
		original += line.LineTotal
	}
	discounted := domain.ApplyBasisPointsDiscount(original, domain.ComboDiscountBasisPoints)

	quote.Complete = true
	quote.Lines = lines
	quote.OriginalTotal = original
	quote.DiscountedTotal = discounted
	quote.DiscountAmount = original - discounted
	return quote
}

func priceLine(product domain.Product, role domain.RoleClass, quantity int) domain.ComboLine {
	if quantity < 1 {
		quantity = 1
	}
	return domain.ComboLine{
		Product:   product,
		Role:      role,
		Quantity:  quantity,
		UnitPrice: product.Price,
		LineTotal: product.Price * int64(quantity),
	}
}
