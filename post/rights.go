package post

import "fmt"

// ChildrenRights controls who may create children of a post.
type ChildrenRights uint8

const (
	// None forbids children.
	None ChildrenRights = iota
	// Itself allows children only from the post's owner.
	Itself
	// All allows children from anyone.
	All
)

var rightsNames = [...]string{
	None:   "none",
	Itself: "itself",
	All:    "all",
}

// ParseChildrenRights parses the persisted string form.
// Unknown strings are rejected rather than defaulted.
func ParseChildrenRights(s string) (ChildrenRights, error) {
	for r, name := range rightsNames {
		if s == name {
			return ChildrenRights(r), nil
		}
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownRights, s)
}

// Valid reports whether r is one of None, Itself, All.
func (r ChildrenRights) Valid() bool {
	return int(r) < len(rightsNames)
}

func (r ChildrenRights) String() string {
	if !r.Valid() {
		return fmt.Sprintf("ChildrenRights(%d)", uint8(r))
	}
	return rightsNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r ChildrenRights) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRights, uint8(r))
	}
	return []byte(rightsNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ChildrenRights) UnmarshalText(text []byte) error {
	parsed, err := ParseChildrenRights(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// allows reports whether a creator holding actingHash may add a child to a
// post owned by ownerHash.
func (r ChildrenRights) allows(ownerHash, actingHash string) bool {
	switch r {
	case All:
		return true
	case Itself:
		return actingHash == ownerHash
	default:
		return false
	}
}
