package across

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
)

var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// RateModel is the piecewise-linear interest rate curve of an Across pool.
// All fields are WAD-scaled: UBar is the utilization kink, R0 the base rate,
// R1 the slope below the kink and R2 the slope above it.
type RateModel struct {
	UBar *big.Int
	R0   *big.Int
	R1   *big.Int
	R2   *big.Int
}

// rawRateModel mirrors the config store JSON, where every field is a decimal
// string.
type rawRateModel struct {
	UBar string `json:"UBar"`
	R0   string `json:"R0"`
	R1   string `json:"R1"`
	R2   string `json:"R2"`
}

type l1TokenConfig struct {
	RateModel      *rawRateModel           `json:"rateModel"`
	RouteRateModel map[string]rawRateModel `json:"routeRateModel"`
}

// ParseRateModel extracts the rate model for a route from the config store
// payload. A route-specific model takes precedence over the token default.
func ParseRateModel(configJSON, routeKey string) (*RateModel, error) {
	var cfg l1TokenConfig
	if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse l1 token config: %v", err)
	}

	raw := cfg.RateModel
	if routeModel, ok := cfg.RouteRateModel[routeKey]; ok {
		raw = &routeModel
	}
	if raw == nil {
		return nil, fmt.Errorf("no rate model in l1 token config")
	}
	return raw.toRateModel()
}

func (r *rawRateModel) toRateModel() (*RateModel, error) {
	parse := func(field, value string) (*big.Int, error) {
		n, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, fmt.Errorf("invalid rate model field %s: %s", field, value)
		}
		return n, nil
	}

	uBar, err := parse("UBar", r.UBar)
	if err != nil {
		return nil, err
	}
	r0, err := parse("R0", r.R0)
	if err != nil {
		return nil, err
	}
	r1, err := parse("R1", r.R1)
	if err != nil {
		return nil, err
	}
	r2, err := parse("R2", r.R2)
	if err != nil {
		return nil, err
	}
	return &RateModel{UBar: uBar, R0: r0, R1: r1, R2: r2}, nil
}

// RateAt returns the instantaneous annualized rate at utilization u (WAD).
func (m *RateModel) RateAt(u *big.Int) *big.Int {
	if u.Cmp(m.UBar) <= 0 {
		if m.UBar.Sign() == 0 {
			return new(big.Int).Set(m.R0)
		}
		piece := new(big.Int).Div(new(big.Int).Mul(m.R1, u), m.UBar)
		return piece.Add(piece, m.R0)
	}

	denom := new(big.Int).Sub(wad, m.UBar)
	if denom.Sign() == 0 {
		return new(big.Int).Add(m.R0, m.R1)
	}
	excess := new(big.Int).Sub(u, m.UBar)
	piece := new(big.Int).Div(new(big.Int).Mul(m.R2, excess), denom)
	piece.Add(piece, m.R0)
	return piece.Add(piece, m.R1)
}

// AverageRate returns the annualized rate averaged over the utilization move
// from a to b. The curve is piecewise linear so the trapezoid areas are exact.
func (m *RateModel) AverageRate(a, b *big.Int) *big.Int {
	if b.Cmp(a) <= 0 {
		return m.RateAt(a)
	}

	area := big.NewInt(0)
	segment := func(x, y *big.Int) {
		// (rate(x) + rate(y)) * (y - x) / (2 * wad)
		sum := new(big.Int).Add(m.RateAt(x), m.RateAt(y))
		width := new(big.Int).Sub(y, x)
		part := new(big.Int).Mul(sum, width)
		part.Div(part, new(big.Int).Lsh(wad, 1))
		area.Add(area, part)
	}

	if a.Cmp(m.UBar) < 0 {
		end := m.UBar
		if b.Cmp(m.UBar) < 0 {
			end = b
		}
		segment(a, end)
	}
	if b.Cmp(m.UBar) > 0 {
		start := m.UBar
		if a.Cmp(m.UBar) > 0 {
			start = a
		}
		segment(start, b)
	}

	avg := new(big.Int).Mul(area, wad)
	return avg.Div(avg, new(big.Int).Sub(b, a))
}

// ApyToWeeklyFee converts an annualized rate (WAD) into the fee accrued over
// one week with weekly compounding: (1 + apy)^(1/52) - 1. This is the only
// place the fee math leaves integer arithmetic.
func ApyToWeeklyFee(apy *big.Int) *big.Int {
	apyFloat, _ := new(big.Float).Quo(new(big.Float).SetInt(apy), new(big.Float).SetInt(wad)).Float64()
	weekly := math.Pow(1+apyFloat, 1.0/52.0) - 1

	scaled := new(big.Float).Mul(big.NewFloat(weekly), new(big.Float).SetInt(wad))
	fee, _ := scaled.Int(nil)
	if fee.Sign() < 0 {
		return big.NewInt(0)
	}
	return fee
}
