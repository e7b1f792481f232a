package models

// FeatureScore is one provider output for one symbol.
type FeatureScore struct {
	Raw            float64                `json:"raw"`
	NormalizedHint float64                `json:"normalized_hint"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

// Fallback reports whether the provider substituted a default value.
func (s FeatureScore) Fallback() bool {
	v, ok := s.Meta["fallback"].(bool)
	return ok && v
}

// FeatureMatrix is feature -> symbol -> score. Feature and symbol order is
// the order of first insertion.
type FeatureMatrix struct {
	features []string
	symbols  []string
	seen     map[string]struct{}
	scores   map[string]map[string]FeatureScore
}

func NewFeatureMatrix() *FeatureMatrix {
	return &FeatureMatrix{
		seen:   make(map[string]struct{}),
		scores: make(map[string]map[string]FeatureScore),
	}
}

// SetFeature stores a provider result. An empty result still records the feature.
func (m *FeatureMatrix) SetFeature(feature string, scores map[string]FeatureScore, symbolOrder []string) {
	col, ok := m.scores[feature]
	if !ok {
		col = make(map[string]FeatureScore, len(scores))
		m.scores[feature] = col
		m.features = append(m.features, feature)
	}
	for _, sym := range symbolOrder {
		if s, ok := scores[sym]; ok {
			col[sym] = s
			m.addSymbol(sym)
		}
	}
	// symbols a provider returned outside the requested order
	for sym, s := range scores {
		if _, ok := col[sym]; !ok {
			col[sym] = s
			m.addSymbol(sym)
		}
	}
}

// Set stores a single value.
func (m *FeatureMatrix) Set(feature, symbol string, s FeatureScore) {
	m.SetFeature(feature, map[string]FeatureScore{symbol: s}, []string{symbol})
}

func (m *FeatureMatrix) addSymbol(sym string) {
	if _, ok := m.seen[sym]; ok {
		return
	}
	m.seen[sym] = struct{}{}
	m.symbols = append(m.symbols, sym)
}

func (m *FeatureMatrix) Features() []string {
	return append([]string(nil), m.features...)
}

// Symbols is the union of symbols across features.
func (m *FeatureMatrix) Symbols() []string {
	return append([]string(nil), m.symbols...)
}

func (m *FeatureMatrix) Score(feature, symbol string) (FeatureScore, bool) {
	s, ok := m.scores[feature][symbol]
	return s, ok
}

// Raw returns the raw values of one feature.
func (m *FeatureMatrix) Raw(feature string) map[string]float64 {
	col := m.scores[feature]
	out := make(map[string]float64, len(col))
	for sym, s := range col {
		out[sym] = s.Raw
	}
	return out
}

func (m *FeatureMatrix) Empty() bool {
	return len(m.symbols) == 0
}
