package testutil

// FixedNavIDGenerator returns the same navigation id every time.
//
// Useful where every navigation in a test should share one correlation id
// so logs and outcomes compare byte for byte.
//
// Thread-safety: FixedNavIDGenerator is stateless and safe for concurrent use.
type FixedNavIDGenerator struct {
	id string
}

// NewFixedNavIDGenerator creates the generator. An empty id becomes
// "test-nav-default".
func NewFixedNavIDGenerator(id string) *FixedNavIDGenerator {
	if id == "" {
		id = "test-nav-default"
	}
	return &FixedNavIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedNavIDGenerator) Generate() string {
	return g.id
}
