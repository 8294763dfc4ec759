package services

import (
	domain "github.com/adega-club/api/internal/domain"
	"github.com/adega-club/api/internal/platform/textutil"
)

// Keyword sets for role tagging. Matching is diacritic and case insensitive,
// so "Cachaça" and "cachaca" classify the same.
var (
	spiritCategoryKeywords = []string{
		"gin", "vodka", "cachaca", "whisky", "whiskey", "rum", "sake", "tequila",
	}
	energyDrinkKeywords = []string{
		"energetico", "energy drink", "energy",
	}
	largeBottleMarkers = []string{
		"2l", "2 l", "2 litros", "garrafa 2",
	}
	iceKeywords = []string{
		"gelo", "ice",
	}
	bulkBagMarkers = []string{
		"5kg", "5 kg", "10kg", "10 kg", "saco",
	}
	excludedIceMarkers = []string{
		"triturado", "crushed", "premium", "gourmet",
	}
)

// ClassifyProduct returns the role classes a single product qualifies for,
// ignoring stock gates. Roles are independent; a product may carry several.
func ClassifyProduct(product domain.Product) domain.RoleSet {
	if !product.ComboEligible || !product.Active {
		return nil
	}

	var roles domain.RoleSet
	if isSpirit(product) {
		roles = append(roles, domain.RoleSpirit)
	}
	if isEnergyDrink(product) {
		if isLargeBottle(product) {
			roles = append(roles, domain.RoleEnergyDrink2L)
		} else {
			roles = append(roles, domain.RoleEnergyDrinkPack)
		}
	}
	if isIce(product) {
		roles = append(roles, domain.RoleIce)
	}
	return roles
}

// IceSize partitions an ice-classified product into its sales unit class.
func IceSize(product domain.Product) domain.IceSizeClass {
	if textutil.ContainsAnyFold(product.Name, bulkBagMarkers) {
		return domain.IceSizeBulkBag
	}
	return domain.IceSizeStandard
}

// BuildCandidates runs the role classifier over a snapshot once and applies
// the stock gates, producing the candidate lists the configurator offers.
// Prepared products bypass stock gates since they are made to order.
func BuildCandidates(snapshot domain.CatalogSnapshot, canPackSizes []int, iceSlotCount int) domain.ComboCandidates {
	candidates := domain.ComboCandidates{
		CanPacks: make(map[int][]domain.Product, len(canPackSizes)),
		Roles:    make(map[string]domain.RoleSet, len(snapshot.Products)),
	}
	for _, size := range canPackSizes {
		if size >= 2 {
			candidates.CanPacks[size] = nil
		}
	}

	for _, product := range snapshot.Products {
		roles := ClassifyProduct(product)
		if len(roles) == 0 {
			continue
		}
		candidates.Roles[product.ID] = roles

		if roles.Has(domain.RoleSpirit) && hasStock(product, 1) {
			candidates.Spirits = append(candidates.Spirits, product)
		}
		if roles.Has(domain.RoleEnergyDrink2L) && hasStock(product, 1) {
			candidates.LargeBottles = append(candidates.LargeBottles, product)
		}
		if roles.Has(domain.RoleEnergyDrinkPack) {
			for size := range candidates.CanPacks {
				if hasStock(product, size) {
					candidates.CanPacks[size] = append(candidates.CanPacks[size], product)
				}
			}
		}
		if roles.Has(domain.RoleIce) && !isExcludedIceGrade(product) {
			switch IceSize(product) {
			case domain.IceSizeBulkBag:
				if hasStock(product, 1) {
					candidates.BulkIce = append(candidates.BulkIce, product)
				}
			default:
				if hasStock(product, iceSlotCount) {
					candidates.StandardIce = append(candidates.StandardIce, product)
				}
			}
		}
	}

	return candidates
}

// SpiritsInCategory filters the spirit candidates down to one category.
// An empty category ID returns the full list.
func SpiritsInCategory(candidates domain.ComboCandidates, categoryID string) []domain.Product {
	if categoryID == "" {
		return candidates.Spirits
	}
	filtered := make([]domain.Product, 0, len(candidates.Spirits))
	for _, product := range candidates.Spirits {
		if product.CategoryID == categoryID {
			filtered = append(filtered, product)
		}
	}
	return filtered
}

// isSpirit decides on the category name alone. An exact match against the
// keyword list and keyword containment both qualify; the product name never
// participates, so "Ginger Ale" under "Refrigerantes" stays out.
func isSpirit(product domain.Product) bool {
	if product.CategoryName == "" {
		return false
	}
	return textutil.ContainsAnyFold(product.CategoryName, spiritCategoryKeywords)
}

func isEnergyDrink(product domain.Product) bool {
	return textutil.ContainsAnyFold(product.Name, energyDrinkKeywords)
}

func isLargeBottle(product domain.Product) bool {
	return textutil.ContainsAnyFold(product.Name, largeBottleMarkers)
}

func isIce(product domain.Product) bool {
	return textutil.ContainsAnyFold(product.Name, iceKeywords)
}

func isExcludedIceGrade(product domain.Product) bool {
	return textutil.ContainsAnyFold(product.Name, excludedIceMarkers)
}

func hasStock(product domain.Product, needed int) bool {
	if product.Prepared {
		return true
	}
	return product.Stock >= needed
}
