package registry

import (
	"fmt"
	"strings"
)

// TypeID identifies a registered script type. Cross references between
// tables are numeric ids, never pointers.
type TypeID int

// InvalidTypeID is returned by failed lookups.
const InvalidTypeID TypeID = -1

// Type describes a registered script type.
type Type struct {
	ID        TypeID
	Name      string
	Size      int
	Alignment int
}

// TypeTable holds every registered type together with the constructor and
// destructor function lists the compiler consults when it emits scope
// auto-run lists.
type TypeTable struct {
	types  []*Type
	byName map[string]TypeID

	constructors map[TypeID][]FunctionID
	destructors  map[TypeID][]FunctionID
}

// NewTypeTable creates an empty type table.
func NewTypeTable() *TypeTable {
	return &TypeTable{
		byName:       make(map[string]TypeID),
		constructors: make(map[TypeID][]FunctionID),
		destructors:  make(map[TypeID][]FunctionID),
	}
}

// RegisterType registers a type by name and returns its id. Registering a
// name twice is an error.
func (t *TypeTable) RegisterType(name string, size, alignment int) (TypeID, error) {
	key := strings.ToLower(name)
	if _, exists := t.byName[key]; exists {
		return InvalidTypeID, fmt.Errorf("type %q already registered", name)
	}
	if size < 0 {
		return InvalidTypeID, fmt.Errorf("type %q has negative size %d", name, size)
	}
	id := TypeID(len(t.types))
	t.types = append(t.types, &Type{ID: id, Name: name, Size: size, Alignment: alignment})
	t.byName[key] = id
	return id, nil
}

// Lookup returns the type registered under id.
func (t *TypeTable) Lookup(id TypeID) (*Type, error) {
	if id < 0 || int(id) >= len(t.types) {
		return nil, fmt.Errorf("unknown type id %d", id)
	}
	return t.types[id], nil
}

// Find returns the id registered for name.
func (t *TypeTable) Find(name string) (TypeID, bool) {
	id, ok := t.byName[strings.ToLower(name)]
	return id, ok
}

// SizeOf returns the byte size of the type registered under id.
func (t *TypeTable) SizeOf(id TypeID) (int, error) {
	typ, err := t.Lookup(id)
	if err != nil {
		return 0, err
	}
	return typ.Size, nil
}

// RegisterConstructor appends fn to the constructor list of the type.
func (t *TypeTable) RegisterConstructor(id TypeID, fn FunctionID) error {
	if _, err := t.Lookup(id); err != nil {
		return err
	}
	t.constructors[id] = append(t.constructors[id], fn)
	return nil
}

// RegisterDestructor appends fn to the destructor list of the type.
func (t *TypeTable) RegisterDestructor(id TypeID, fn FunctionID) error {
	if _, err := t.Lookup(id); err != nil {
		return err
	}
	t.destructors[id] = append(t.destructors[id], fn)
	return nil
}

// Constructors returns the constructor function ids registered for the type,
// in registration order.
func (t *TypeTable) Constructors(id TypeID) []FunctionID {
	return t.constructors[id]
}

// Destructors returns the destructor function ids registered for the type.
func (t *TypeTable) Destructors(id TypeID) []FunctionID {
	return t.destructors[id]
}
