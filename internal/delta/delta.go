// Package delta defines the canonical shape of an object change event, the
// sole boundary through which the ingest pipeline accepts work.
//
// All upstream decoding — JSON parsing, watch-event interpretation — happens
// before this boundary. A Delta carries an already-structured document; the
// builder (internal/world) is the only core package that looks inside raw.
package delta

import (
	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Uid is a 16-byte opaque identifier, globally unique per object across its
// lifetime. It is the primary key for coalescing and the tie-break for
// ordering. Uid is byte-identical to uuid.UUID, so producers that mint
// their own identifiers can use either interchangeably.
type Uid [16]byte

// NewUid mints a fresh random Uid.
func NewUid() Uid {
	return Uid(uuid.New())
}

// ParseUid parses a canonical UUID string into a Uid.
func ParseUid(s string) (Uid, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Uid{}, err
	}
	return Uid(u), nil
}

// String renders the Uid in canonical UUID form.
func (u Uid) String() string {
	return uuid.UUID(u).String()
}

// Less defines the ascending tie-break order used throughout the index and
// the world builder's freeze ordering: byte-wise comparison.
func (u Uid) Less(other Uid) bool {
	for i := range u {
		if u[i] != other[i] {
			return u[i] < other[i]
		}
	}
	return false
}

// Kind distinguishes an object coming into existence (or being replaced)
// from one leaving the world.
type Kind int

const (
	// Applied carries the complete object body.
	Applied Kind = iota
	// Deleted may carry an empty body; only uid is authoritative.
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Applied:
		return "Applied"
	case Deleted:
		return "Deleted"
	default:
		return "Unknown"
	}
}

// Delta is one change event for one object.
type Delta struct {
	Uid  Uid
	Kind Kind
	// Raw is the structured document carried by Applied deltas. Deleted
	// deltas may leave this nil; only Uid is read for a Deleted delta.
	Raw *unstructured.Unstructured
}

// NewApplied builds an Applied delta from a raw document.
func NewApplied(uid Uid, raw *unstructured.Unstructured) Delta {
	return Delta{Uid: uid, Kind: Applied, Raw: raw}
}

// NewDeleted builds a Deleted delta for uid; no raw body is required.
func NewDeleted(uid Uid) Delta {
	return Delta{Uid: uid, Kind: Deleted}
}
