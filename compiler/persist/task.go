package persist

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/syssam/relcomp/schema"
)

// OpKind is the kind of a persist task.
type OpKind = schema.Op

// Task kinds.
const (
	OpInsert = schema.OpInsert
	OpUpdate = schema.OpUpdate
	OpRemove = schema.OpRemove
)

// FieldSet is a set of field offsets. The zero value is empty.
type FieldSet struct {
	words []uint64
}

// NewFieldSet returns a set holding the given offsets.
func NewFieldSet(offsets ...int) FieldSet {
	var s FieldSet
	for _, o := range offsets {
		s.Set(o)
	}
	return s
}

// Set adds the offset to the set. Negative offsets are ignored.
func (s *FieldSet) Set(offset int) {
	if offset < 0 {
		return
	}
	w := offset / 64
	if w >= len(s.words) {
		words := make([]uint64, w+1)
		copy(words, s.words)
		s.words = words
	}
	s.words[w] |= 1 << (offset % 64)
}

// Has reports if the offset is in the set.
func (s FieldSet) Has(offset int) bool {
	if offset < 0 || offset/64 >= len(s.words) {
		return false
	}
	return s.words[offset/64]&(1<<(offset%64)) != 0
}

// Len returns the number of offsets in the set.
func (s FieldSet) Len() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Offsets returns the offsets of the set in increasing order.
func (s FieldSet) Offsets() []int {
	var offsets []int
	for i, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			offsets = append(offsets, i*64+b)
			w &^= 1 << b
		}
	}
	return offsets
}

// String returns the offsets of the set, e.g. "{1, 4}".
func (s FieldSet) String() string {
	offsets := s.Offsets()
	parts := make([]string, len(offsets))
	for i, o := range offsets {
		parts[i] = strconv.Itoa(o)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// canonical returns the words of the set without trailing zeros, in hex.
// Equal sets have equal canonical forms.
func (s FieldSet) canonical() string {
	n := len(s.words)
	for n > 0 && s.words[n-1] == 0 {
		n--
	}
	var sb strings.Builder
	for i := range n {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.FormatUint(s.words[i], 16))
	}
	return sb.String()
}

// Task describes the persistence of one entity: the mapped type, the
// operation and, for updates, the changed fields.
type Task struct {
	Type    *schema.Type
	Kind    OpKind
	Changed FieldSet
}

// Key returns the structural key of the task. Tasks with equal keys
// compile to the same statements.
func (t Task) Key() TaskKey {
	k := TaskKey{Kind: t.Kind}
	if t.Type != nil {
		k.Type = t.Type.ID
	}
	if t.Kind == OpUpdate {
		k.Fields = t.Changed.canonical()
	}
	return k
}

// TaskKey is the request cache key of a persist task.
type TaskKey struct {
	Type   uuid.UUID
	Kind   OpKind
	Fields string
}

// String implements relcomp.Key.
func (k TaskKey) String() string {
	if k.Fields != "" {
		return fmt.Sprintf("%s:%s[%s]", k.Kind, k.Type, k.Fields)
	}
	return fmt.Sprintf("%s:%s", k.Kind, k.Type)
}
