// README: Common money value object used across modules.
package types

import "github.com/shopspring/decimal"

const DefaultCurrency = "EUR"

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: d, Currency: DefaultCurrency}, nil
}

func Zero() Money {
	return Money{Amount: decimal.Zero, Currency: DefaultCurrency}
}

// Add sums two amounts; the receiver's currency wins when set.
func (m Money) Add(o Money) Money {
	cur := m.Currency
	if cur == "" {
		cur = o.Currency
	}
	return Money{Amount: m.Amount.Add(o.Amount), Currency: cur}
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}
