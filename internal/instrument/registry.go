// Package instrument provides the static reference data (tick size, contract
// multiplier, margin rate and fee schedule) for the futures products the
// engine can replay.
package instrument

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"tickledger/internal/domain"
)

// Registry holds instruments keyed by product code (e.g. "M", "JM").
type Registry struct {
	instruments map[string]domain.Instrument
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		instruments: make(map[string]domain.Instrument),
	}
}

// Default returns a Registry preloaded with the built-in product table.
func Default() *Registry {
	r := NewRegistry()
	for _, inst := range builtin {
		r.Register(inst)
	}
	return r
}

// Register adds or replaces an instrument, keyed by its upper-cased Code.
func (r *Registry) Register(inst domain.Instrument) {
	inst.Code = strings.ToUpper(inst.Code)
	r.instruments[inst.Code] = inst
}

// Lookup returns the reference data for code. Contract codes such as
// "m2405" resolve to their product ("M"). A missing product or an entry
// without tick size, multiplier or margin rate is a configuration error.
func (r *Registry) Lookup(code string) (domain.Instrument, error) {
	product := ProductCode(code)
	inst, ok := r.instruments[product]
	if !ok {
		return domain.Instrument{}, &domain.ConfigError{Field: "instrument", Reason: fmt.Sprintf("unknown instrument %q", code)}
	}
	if err := Validate(inst); err != nil {
		return domain.Instrument{}, err
	}
	return inst, nil
}

// List returns a sorted slice of all registered product codes.
func (r *Registry) List() []string {
	codes := make([]string, 0, len(r.instruments))
	for code := range r.instruments {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Validate checks that inst carries everything the ledger needs.
func Validate(inst domain.Instrument) error {
	switch {
	case inst.TickSize <= 0:
		return &domain.ConfigError{Field: inst.Code + ".tick_size", Reason: "must be positive"}
	case inst.Multiplier <= 0:
		return &domain.ConfigError{Field: inst.Code + ".multiplier", Reason: "must be positive"}
	case inst.MarginRate <= 0 || inst.MarginRate > 1:
		return &domain.ConfigError{Field: inst.Code + ".margin_rate", Reason: "must be in (0, 1]"}
	}
	return nil
}

// ProductCode strips the delivery month from a contract code and upper-cases
// it: "jm2409" -> "JM".
func ProductCode(code string) string {
	end := strings.IndexFunc(code, unicode.IsDigit)
	if end < 0 {
		end = len(code)
	}
	return strings.ToUpper(strings.TrimSpace(code[:end]))
}

// file is the on-disk layout of an instrument override file. Fee rates are
// pointers so that an omitted tier is told apart from a zero rate.
type file struct {
	Instruments []entry `yaml:"instruments"`
}

type entry struct {
	Code       string  `yaml:"code"`
	TickSize   float64 `yaml:"tick_size"`
	Multiplier float64 `yaml:"multiplier"`
	MarginRate float64 `yaml:"margin_rate"`
	Fees       *struct {
		Open           *float64 `yaml:"open"`
		CloseToday     *float64 `yaml:"close_today"`
		CloseYesterday *float64 `yaml:"close_yesterday"`
	} `yaml:"fees"`
}

// instrument converts the entry, requiring all three fee tiers.
func (e entry) instrument() (domain.Instrument, error) {
	inst := domain.Instrument{
		Code:       e.Code,
		TickSize:   e.TickSize,
		Multiplier: e.Multiplier,
		MarginRate: e.MarginRate,
	}
	if e.Fees == nil {
		return inst, &domain.ConfigError{Field: e.Code + ".fees", Reason: "required"}
	}
	for _, tier := range []struct {
		name string
		rate *float64
		dst  *float64
	}{
		{"open", e.Fees.Open, &inst.Fees.Open},
		{"close_today", e.Fees.CloseToday, &inst.Fees.CloseToday},
		{"close_yesterday", e.Fees.CloseYesterday, &inst.Fees.CloseYesterday},
	} {
		if tier.rate == nil {
			return inst, &domain.ConfigError{Field: e.Code + ".fees." + tier.name, Reason: "required"}
		}
		*tier.dst = *tier.rate
	}
	return inst, nil
}

// LoadFile reads instrument definitions from a YAML file and registers them
// over any existing entries with the same code. Every entry must give all
// three fee tiers.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading instrument file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing instrument file: %w", err)
	}
	for i, e := range f.Instruments {
		if e.Code == "" {
			return &domain.ConfigError{Field: fmt.Sprintf("instruments[%d].code", i), Reason: "required"}
		}
		inst, err := e.instrument()
		if err != nil {
			return err
		}
		if err := Validate(inst); err != nil {
			return err
		}
		r.Register(inst)
	}
	return nil
}
