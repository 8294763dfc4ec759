package domain

import "testing"

func TestApplyBasisPointsDiscountFivePercent(t *testing.T) {
	if got := ApplyBasisPointsDiscount(8600, ComboDiscountBasisPoints); got != 8170 {
		t.Fatalf("expected 8170, got %d", got)
	}
}

func TestApplyBasisPointsDiscountRoundsHalfUp(t *testing.T) {
	// 8601 * 0.95 = 8170.95, which rounds up.
	if got := ApplyBasisPointsDiscount(8601, 500); got != 8171 {
		t.Fatalf("expected 8171, got %d", got)
	}
	// 101 * 0.95 = 95.95, which rounds up.
	if got := ApplyBasisPointsDiscount(101, 500); got != 96 {
		t.Fatalf("expected 96, got %d", got)
	}
}

func TestApplyBasisPointsDiscountEdgeCases(t *testing.T) {
	if got := ApplyBasisPointsDiscount(0, 500); got != 0 {
		t.Fatalf("expected zero amount unchanged, got %d", got)
	}
	if got := ApplyBasisPointsDiscount(1000, 0); got != 1000 {
		t.Fatalf("expected zero basis points unchanged, got %d", got)
	}
	if got := ApplyBasisPointsDiscount(1000, 10000); got != 0 {
		t.Fatalf("expected full discount to zero, got %d", got)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount   int64
		currency string
		want     string
	}{
		{8170, "BRL", "R$ 81.70"},
		{5, "BRL", "R$ 0.05"},
		{-250, "BRL", "-R$ 2.50"},
		{1999, "USD", "$19.99"},
		{300, "XYZ", "XYZ 3.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.amount, tc.currency); got != tc.want {
			t.Fatalf("FormatAmount(%d, %q) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}

func TestPackOptionShapes(t *testing.T) {
	single := SingleLargeBottle()
	if !single.Valid() {
		t.Fatalf("single bottle option should be valid")
	}
	if single.Quantity() != 1 {
		t.Fatalf("single bottle quantity should be 1, got %d", single.Quantity())
	}
	if single.Role() != RoleEnergyDrink2L {
		t.Fatalf("single bottle role should be 2l, got %q", single.Role())
	}

	pack := MultiCanPack(4)
	if !pack.Valid() {
		t.Fatalf("4-can pack should be valid")
	}
	if pack.Quantity() != 4 {
		t.Fatalf("4-can pack quantity should be 4, got %d", pack.Quantity())
	}
	if pack.Role() != RoleEnergyDrinkPack {
		t.Fatalf("can pack role should be pack, got %q", pack.Role())
	}

	if MultiCanPack(1).Valid() {
		t.Fatalf("1-can pack should be invalid")
	}
	if (PackOption{Kind: PackKindSingleBottle, PackSize: 2}).Valid() {
		t.Fatalf("single bottle with a pack size should be invalid")
	}
	if (PackOption{Kind: "bundle"}).Valid() {
		t.Fatalf("unknown kind should be invalid")
	}
}

func TestComboSelectionCompleteness(t *testing.T) {
	selection := NewComboSelection(2)
	if selection.IsComplete() {
		t.Fatalf("empty selection should be incomplete")
	}
	if selection.PackOption != SingleLargeBottle() {
		t.Fatalf("new selection should default to the single bottle option")
	}

	spirit := Product{ID: "p-1"}
	drink := Product{ID: "p-2"}
	ice := Product{ID: "p-3"}
	selection.Spirit = &spirit
	selection.EnergyDrink = &drink
	selection.IceSlots[0].Product = &ice
	if selection.IsComplete() {
		t.Fatalf("selection with an open ice slot should be incomplete")
	}
	if selection.FilledIceSlots() != 1 {
		t.Fatalf("expected 1 filled slot, got %d", selection.FilledIceSlots())
	}

	other := Product{ID: "p-4"}
	selection.IceSlots[1].Product = &other
	if !selection.IsComplete() {
		t.Fatalf("fully picked selection should be complete")
	}
}

func TestComboRecordLinesOrder(t *testing.T) {
	record := ComboRecord{
		Spirit:      ComboLine{Role: RoleSpirit},
		EnergyDrink: ComboLine{Role: RoleEnergyDrink2L},
		Ice: []ComboLine{
			{Role: RoleIce},
			{Role: RoleIce},
		},
	}
	lines := record.Lines()
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
	if lines[0].Role != RoleSpirit || lines[1].Role != RoleEnergyDrink2L {
		t.Fatalf("unexpected line order: %v", lines)
	}
}
