package enums

// Currency is the ISO 4217 code attached to monetary amounts.
type Currency string

const (
	CurrencyUSD Currency = "USD"
)

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}
