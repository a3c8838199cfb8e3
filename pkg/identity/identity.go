// Package identity defines the Identity value type that names an object
// independently of where it is hosted.
package identity

import (
	"errors"
	"fmt"
)

// ErrEmptyName is returned by New when Name is empty — an object with no
// name cannot be looked up in any servant map.
var ErrEmptyName = errors.New("identity: Name must not be empty")

// Identity names an object by category and name. It is a plain comparable
// struct, safe to use as a map key (the object adapter's servant map keys
// directly on it) and to pass by value.
type Identity struct {
	Category string
	Name     string
}

// New validates and constructs an Identity. Category may be empty (the
// default category); Name must not be.
func New(category, name string) (Identity, error) {
	if name == "" {
		return Identity{}, ErrEmptyName
	}
	return Identity{Category: category, Name: name}, nil
}

// String renders the identity in "category/name" form, or bare "name" when
// Category is empty, matching the stringified reference grammar.
func (id Identity) String() string {
	if id.Category == "" {
		return id.Name
	}
	return fmt.Sprintf("%s/%s", id.Category, id.Name)
}

// IsEmpty reports whether id is the zero Identity (no name set).
func (id Identity) IsEmpty() bool {
	return id.Name == "" && id.Category == ""
}
