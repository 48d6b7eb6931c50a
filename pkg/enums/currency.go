package enums

// Currency is the ISO currency code carried on priced records.
// The storefront operates in a single currency.
type Currency string

const CurrencyINR Currency = "INR"

func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the value is a supported currency.
func (c Currency) IsValid() bool {
	return c == CurrencyINR
}
