package market

// StockType tags an instrument with the behavior class that drives
// type-specific parameter scaling.
type StockType string

const (
	TypeGrowth   StockType = "growth"
	TypeDividend StockType = "dividend"
	TypeValue    StockType = "value"
	TypeIndex    StockType = "index"
)

// InstrumentConfig is the immutable per-instrument configuration. One entry
// per tradable instrument; the universe is small and fixed for the life of
// the process.
type InstrumentConfig struct {
	ID         string    `yaml:"id" json:"id"`
	Name       string    `yaml:"name" json:"name"`
	Weight     float64   `yaml:"weight" json:"weight"`            // share of the sleeve budget
	MinHolding int64     `yaml:"min_holding" json:"min_holding"`  // floor never sold below
	Type       StockType `yaml:"type" json:"type"`
}

// IsGrowth reports whether the instrument carries the growth tag, which
// switches partial-exit behavior and tightens entry parameters.
func (c InstrumentConfig) IsGrowth() bool {
	return c.Type == TypeGrowth
}

// typeDefaults fills zero-valued fields from per-type defaults. Weight has
// no default; config validation rejects a zero weight.
var typeDefaults = map[StockType]InstrumentConfig{
	TypeGrowth:   {MinHolding: 0},
	TypeDividend: {MinHolding: 1},
	TypeValue:    {MinHolding: 0},
	TypeIndex:    {MinHolding: 0},
}

// ApplyDefaults fills unset optional fields from the instrument's type
// defaults and normalizes the type tag to a known value.
func (c *InstrumentConfig) ApplyDefaults() {
	if c.Type == "" {
		c.Type = TypeValue
	}
	def, ok := typeDefaults[c.Type]
	if !ok {
		c.Type = TypeValue
		def = typeDefaults[TypeValue]
	}
	if c.MinHolding == 0 {
		c.MinHolding = def.MinHolding
	}
	if c.Name == "" {
		c.Name = c.ID
	}
}
