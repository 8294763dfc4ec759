package domain

import (
	"fmt"
	"time"
)

// ComboDiscountBasisPoints is the flat combo discount, fixed at 5%.
const ComboDiscountBasisPoints = 500

// ComboLine is one priced role line inside a quote or assembled combo.
type ComboLine struct {
	Product   Product
	Role      RoleClass
	Quantity  int
	UnitPrice int64
	LineTotal int64
}

// ComboQuote carries the totals derived from the current selection.
// Both totals are zero while the selection is incomplete.
type ComboQuote struct {
	Complete            bool
	Currency            string
	Lines               []ComboLine
	OriginalTotal       int64
	DiscountedTotal     int64
	DiscountAmount      int64
	DiscountBasisPoints int
}

// ComboRecord is the immutable output of a confirmed combo. Product data is
// snapshotted by value so later catalog changes cannot reach back into it.
type ComboRecord struct {
	ID                  string
	CreatedAt           time.Time
	Currency            string
	CategoryID          string
	PackOption          PackOption
	Spirit              ComboLine
	EnergyDrink         ComboLine
	Ice                 []ComboLine
	OriginalTotal       int64
	DiscountedTotal     int64
	DiscountAmount      int64
	DiscountBasisPoints int
}

// Lines returns every priced line of the record in display order.
func (r ComboRecord) Lines() []ComboLine {
	lines := make([]ComboLine, 0, 2+len(r.Ice))
	lines = append(lines, r.Spirit, r.EnergyDrink)
	lines = append(lines, r.Ice...)
	return lines
}

// ApplyBasisPointsDiscount reduces the amount by the given basis points using
// integer arithmetic, rounding half up so repeated runs stay drift-free.
func ApplyBasisPointsDiscount(amount int64, basisPoints int) int64 {
	if amount <= 0 || basisPoints <= 0 {
		return amount
	}
	if basisPoints >= 10000 {
		return 0
	}
	remainder := amount * int64(10000-basisPoints)
	discounted := remainder / 10000
	if remainder%10000 >= 5000 {
		discounted++
	}
	return discounted
}

// FormatAmount renders a minor-unit amount as a display string, e.g. 8170 BRL
// becomes "R$ 81.70". Unknown currencies fall back to the ISO code prefix.
func FormatAmount(amount int64, currency string) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	major := amount / 100
	minor := amount % 100
	symbol := currencySymbol(currency)
	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%s%d.%02d", sign, symbol, major, minor)
}

func currencySymbol(currency string) string {
	switch currency {
	case "BRL":
		return "R$ "
	case "USD":
		return "$"
	case "EUR":
		return "€"
	default:
		if currency == "" {
			return ""
		}
		return currency + " "
	}
}
