package transaction

import "strings"

// Category is one of the application's fixed spending categories.
type Category string

const (
	CategoryFoodAndDining     Category = "Food & Dining"
	CategoryShopping          Category = "Shopping"
	CategoryTransportation    Category = "Transportation"
	CategoryEntertainment     Category = "Entertainment"
	CategoryBillsAndUtilities Category = "Bills & Utilities"
	CategoryHealthcare        Category = "Healthcare"
	CategoryTravel            Category = "Travel"
	CategoryEducation         Category = "Education"
	CategoryPersonalCare      Category = "Personal Care"
	CategoryIncome            Category = "Income"
	CategoryTransfer          Category = "Transfer"
	CategoryOther             Category = "Other"
)

var categories = []Category{
	CategoryFoodAndDining,
	CategoryShopping,
	CategoryTransportation,
	CategoryEntertainment,
	CategoryBillsAndUtilities,
	CategoryHealthcare,
	CategoryTravel,
	CategoryEducation,
	CategoryPersonalCare,
	CategoryIncome,
	CategoryTransfer,
	CategoryOther,
}

// Categories returns the fixed category list in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// IsValidCategory reports whether c is one of the fixed categories.
func IsValidCategory(c string) bool {
	for _, known := range categories {
		if string(known) == c {
			return true
		}
	}
	return false
}

// modernCategories maps the provider's personal_finance_category.primary codes.
var modernCategories = map[string]Category{
	"FOOD_AND_DRINK":            CategoryFoodAndDining,
	"GENERAL_MERCHANDISE":       CategoryShopping,
	"ENTERTAINMENT":             CategoryEntertainment,
	"TRAVEL":                    CategoryTravel,
	"TRANSPORTATION":            CategoryTransportation,
	"TRANSFER_IN":               CategoryIncome,
	"TRANSFER_OUT":              CategoryTransfer,
	"INCOME":                    CategoryIncome,
	"LOAN_PAYMENTS":             CategoryBillsAndUtilities,
	"RENT_AND_UTILITIES":        CategoryBillsAndUtilities,
	"MEDICAL":                   CategoryHealthcare,
	"PERSONAL_CARE":             CategoryPersonalCare,
	"GENERAL_SERVICES":          CategoryBillsAndUtilities,
	"GOVERNMENT_AND_NON_PROFIT": CategoryOther,
	"HOME_IMPROVEMENT":          CategoryShopping,
	"BANK_FEES":                 CategoryBillsAndUtilities,
}

// legacyKeywords is matched in order against the lowercased first element
// of the legacy category array; the first substring hit wins.
var legacyKeywords = []struct {
	keyword  string
	category Category
}{
	{"food", CategoryFoodAndDining},
	{"restaurants", CategoryFoodAndDining},
	{"shops", CategoryShopping},
	{"shopping", CategoryShopping},
	{"travel", CategoryTravel},
	{"transportation", CategoryTransportation},
	{"transfer", CategoryTransfer},
	{"payment", CategoryBillsAndUtilities},
	{"utilities", CategoryBillsAndUtilities},
	{"service", CategoryBillsAndUtilities},
	{"healthcare", CategoryHealthcare},
	{"medical", CategoryHealthcare},
	{"entertainment", CategoryEntertainment},
	{"recreation", CategoryEntertainment},
	{"education", CategoryEducation},
	{"personal", CategoryPersonalCare},
}

// ProviderCategory is the modern primary/detailed category pair.
type ProviderCategory struct {
	Primary  string
	Detailed string
}

// NormalizeCategory maps provider category data onto the fixed category set.
// The modern category wins over the legacy array; anything unrecognized
// ends up as CategoryOther. It never fails.
func NormalizeCategory(modern *ProviderCategory, legacy []string) Category {
	if modern != nil {
		if c, ok := modernCategories[strings.ToUpper(modern.Primary)]; ok {
			return c
		}
	}

	if len(legacy) > 0 {
		first := strings.ToLower(legacy[0])
		for _, kw := range legacyKeywords {
			if strings.Contains(first, kw.keyword) {
				return kw.category
			}
		}
	}

	return CategoryOther
}
