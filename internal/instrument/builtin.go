package instrument

import "tickledger/internal/domain"

func fees(open, closeToday, closeYesterday float64) domain.FeeSchedule {
	return domain.FeeSchedule{Open: open, CloseToday: closeToday, CloseYesterday: closeYesterday}
}

// builtin lists the DCE products with their speculative margin rates. Fee
// rates below 1 are fractions of notional; the rest are flat per lot.
var builtin = []domain.Instrument{
	{Code: "C", TickSize: 1, Multiplier: 10, MarginRate: 0.12, Fees: fees(1.2, 1.2, 1.2)},
	{Code: "CS", TickSize: 1, Multiplier: 10, MarginRate: 0.09, Fees: fees(1.5, 1.5, 1.5)},
	{Code: "A", TickSize: 1, Multiplier: 10, MarginRate: 0.12, Fees: fees(2.0, 4.0, 2.0)},
	{Code: "B", TickSize: 1, Multiplier: 10, MarginRate: 0.09, Fees: fees(1.0, 2.0, 1.0)},
	{Code: "M", TickSize: 1, Multiplier: 10, MarginRate: 0.10, Fees: fees(1.5, 2.0, 1.5)},
	{Code: "Y", TickSize: 2, Multiplier: 10, MarginRate: 0.09, Fees: fees(2.5, 7.5, 2.5)},
	{Code: "P", TickSize: 2, Multiplier: 10, MarginRate: 0.12, Fees: fees(2.5, 10.0, 2.5)},
	{Code: "FB", TickSize: 0.5, Multiplier: 10, MarginRate: 0.10, Fees: fees(1e-4, 1e-4, 1e-4)},
	{Code: "BB", TickSize: 0.05, Multiplier: 500, MarginRate: 0.40, Fees: fees(1e-4, 1e-4, 1e-4)},
	{Code: "JD", TickSize: 1, Multiplier: 10, MarginRate: 0.09, Fees: fees(1.5e-4, 1.5e-4, 1.5e-4)},
	{Code: "RR", TickSize: 1, Multiplier: 10, MarginRate: 0.06, Fees: fees(1.0, 1.0, 1.0)},
	{Code: "LH", TickSize: 5, Multiplier: 16, MarginRate: 0.15, Fees: fees(2e-4, 4e-4, 2e-4)},
	{Code: "L", TickSize: 5, Multiplier: 5, MarginRate: 0.11, Fees: fees(1.0, 1.0, 1.0)},
	{Code: "V", TickSize: 5, Multiplier: 5, MarginRate: 0.11, Fees: fees(1.0, 1.0, 1.0)},
	{Code: "PP", TickSize: 1, Multiplier: 5, MarginRate: 0.11, Fees: fees(1.0, 1.0, 1.0)},
	{Code: "J", TickSize: 0.5, Multiplier: 100, MarginRate: 0.20, Fees: fees(1e-4, 4e-4, 1e-4)},
	{Code: "JM", TickSize: 0.5, Multiplier: 60, MarginRate: 0.20, Fees: fees(1e-4, 4e-4, 1e-4)},
	{Code: "I", TickSize: 0.5, Multiplier: 100, MarginRate: 0.13, Fees: fees(2e-4, 4e-4, 2e-4)},
	{Code: "EG", TickSize: 1, Multiplier: 10, MarginRate: 0.12, Fees: fees(3.0, 3.0, 3.0)},
	{Code: "EB", TickSize: 1, Multiplier: 5, MarginRate: 0.12, Fees: fees(3.0, 3.0, 3.0)},
	{Code: "PG", TickSize: 1, Multiplier: 20, MarginRate: 0.13, Fees: fees(6.0, 12.0, 6.0)},
}
