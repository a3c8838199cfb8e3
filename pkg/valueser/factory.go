package valueser

import "sync"

// generatedMu guards generatedFactories, the one sanctioned piece of
// process-wide mutable state in this package: code-generated types
// register themselves here at init time, by type id,
// so that any FactoryManager can fall back to them without every call site
// having to know the full set of generated types up front.
var (
	generatedMu        sync.Mutex
	generatedFactories = make(map[string]func() Value)
)

// RegisterGenerated registers a zero-argument constructor for a generated
// class type, keyed by its type id. Intended to be called from an init
// function in generated code, never from application logic.
func RegisterGenerated(typeID string, ctor func() Value) {
	generatedMu.Lock()
	defer generatedMu.Unlock()
	generatedFactories[typeID] = ctor
}

func lookupGenerated(typeID string) func() Value {
	generatedMu.Lock()
	defer generatedMu.Unlock()
	return generatedFactories[typeID]
}

// FactoryManager resolves a type id to a constructor for application-level
// class instances. It is owned by a Communicator and threaded down to
// every Encoder/Decoder it builds — never a package-level singleton, so
// that two Communicators in the same process (e.g. in tests) never share
// factory registrations.
type FactoryManager struct {
	mu             sync.RWMutex
	explicit       map[string]ValueFactory
	defaultFactory ValueFactory
}

// NewFactoryManager returns an empty FactoryManager.
func NewFactoryManager() *FactoryManager {
	return &FactoryManager{explicit: make(map[string]ValueFactory)}
}

// Add registers an explicit factory for one type id, overriding whatever
// the default factory or the generated registry would have produced.
func (fm *FactoryManager) Add(typeID string, factory ValueFactory) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.explicit[typeID] = factory
}

// Remove deregisters a previously added explicit factory.
func (fm *FactoryManager) Remove(typeID string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	delete(fm.explicit, typeID)
}

// AddDefault registers a factory consulted for any type id with no
// explicit registration, before falling back to the generated registry.
func (fm *FactoryManager) AddDefault(factory ValueFactory) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.defaultFactory = factory
}

// find resolves typeID in order: explicit factory, default factory,
// generated registry. Returns nil if none produce a non-nil Value.
func (fm *FactoryManager) find(typeID string) Value {
	fm.mu.RLock()
	explicit := fm.explicit[typeID]
	def := fm.defaultFactory
	fm.mu.RUnlock()

	if explicit != nil {
		if v := explicit(typeID); v != nil {
			return v
		}
	}
	if def != nil {
		if v := def(typeID); v != nil {
			return v
		}
	}
	if ctor := lookupGenerated(typeID); ctor != nil {
		return ctor()
	}
	return nil
}
