// Package fee computes exchange fees, broker markup and rebates for a single
// fill under the open / close-today / close-yesterday tier schedule.
package fee

import (
	"github.com/shopspring/decimal"

	"tickledger/internal/domain"
)

// Breakdown is the fee charged for one fill. Every field is rounded to cents.
type Breakdown struct {
	Exchange float64
	Broker   float64
	Rebate   float64
	Total    float64
}

// Calculator applies one instrument's fee schedule together with the
// account's broker markup and rebate rates.
type Calculator struct {
	schedule       domain.FeeSchedule
	multiplier     decimal.Decimal
	brokerRate     decimal.Decimal
	exchangeRebate decimal.Decimal
	brokerRebate   decimal.Decimal
}

// NewCalculator builds a Calculator from a run context.
func NewCalculator(rc *domain.RunContext) *Calculator {
	return &Calculator{
		schedule:       rc.Instrument.Fees,
		multiplier:     decimal.NewFromFloat(rc.Instrument.Multiplier),
		brokerRate:     decimal.NewFromFloat(rc.BrokerRate),
		exchangeRebate: decimal.NewFromFloat(rc.ExchangeRebate),
		brokerRebate:   decimal.NewFromFloat(rc.BrokerRebate),
	}
}

// Fee returns the breakdown for qty lots filled at price under tier.
//
// A rate with magnitude below 1 is a fraction of notional
// (price × qty × rate × multiplier); anything else is a flat charge per lot.
// The broker markup follows the same rule, applied over the exchange fee.
func (c *Calculator) Fee(price float64, qty int, tier domain.FeeTier) Breakdown {
	q := decimal.NewFromInt(int64(qty))
	rate := decimal.NewFromFloat(c.schedule.Rate(tier))

	var exchange decimal.Decimal
	if isFraction(rate) {
		exchange = decimal.NewFromFloat(price).Mul(q).Mul(rate).Mul(c.multiplier)
	} else {
		exchange = q.Mul(rate)
	}
	exchange = exchange.Round(2)

	var broker decimal.Decimal
	if isFraction(c.brokerRate) {
		broker = exchange.Mul(c.brokerRate)
	} else {
		broker = q.Mul(c.brokerRate)
	}
	broker = broker.Round(2)

	rebate := exchange.Mul(c.exchangeRebate).Mul(c.brokerRebate).Round(2)
	total := exchange.Add(broker).Sub(rebate).Round(2)

	return Breakdown{
		Exchange: exchange.InexactFloat64(),
		Broker:   broker.InexactFloat64(),
		Rebate:   rebate.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}
}

// Add sums two breakdowns, as used when a close is split across tiers.
func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		Exchange: Round2(b.Exchange + o.Exchange),
		Broker:   Round2(b.Broker + o.Broker),
		Rebate:   Round2(b.Rebate + o.Rebate),
		Total:    Round2(b.Total + o.Total),
	}
}

// Round2 rounds v half away from zero to two decimals.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func isFraction(rate decimal.Decimal) bool {
	return rate.Abs().LessThan(decimal.NewFromInt(1))
}
