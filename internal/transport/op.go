package transport

// Kind classifies a call for failure injection.
type Kind int

const (
	// Read calls see latency but never fail.
	Read Kind = iota
	// Write calls create or update entities.
	Write
	// Reorder calls renumber a collection.
	Reorder
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case Reorder:
		return "reorder"
	default:
		return "unknown"
	}
}

// Mutating reports whether calls of this kind change state.
func (k Kind) Mutating() bool {
	return k == Write || k == Reorder
}

// Op names one simulated call.
type Op struct {
	Name string
	Kind Kind
}

// ReadOp, WriteOp and ReorderOp build ops of each kind.
func ReadOp(name string) Op    { return Op{Name: name, Kind: Read} }
func WriteOp(name string) Op   { return Op{Name: name, Kind: Write} }
func ReorderOp(name string) Op { return Op{Name: name, Kind: Reorder} }
