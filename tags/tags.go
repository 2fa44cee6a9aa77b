// Package tags implements the ordered tag set attached to every domain
// object.
package tags

// Set is an ordered set of string tags. Insertion order is preserved and
// duplicates are rejected silently, the same idempotent "add returns
// false if already present" idiom OpenIM's managers use throughout.
type Set struct {
	order []string
	has   map[string]struct{}
}

// New builds a Set containing the given tags, in order, deduplicated.
func New(initial ...string) *Set {
	s := &Set{has: make(map[string]struct{}, len(initial))}
	for _, t := range initial {
		s.Add(t)
	}
	return s
}

// Add inserts tag if not already present. Reports whether it was added.
func (s *Set) Add(tag string) bool {
	if s.has == nil {
		s.has = make(map[string]struct{})
	}
	if _, ok := s.has[tag]; ok {
		return false
	}
	s.has[tag] = struct{}{}
	s.order = append(s.order, tag)
	return true
}

// Remove deletes tag if present. Reports whether it was removed.
func (s *Set) Remove(tag string) bool {
	if _, ok := s.has[tag]; !ok {
		return false
	}
	delete(s.has, tag)
	for i, t := range s.order {
		if t == tag {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Has reports whether tag is present.
func (s *Set) Has(tag string) bool {
	_, ok := s.has[tag]
	return ok
}

// List returns the tags in insertion order. The returned slice is a copy;
// callers may not mutate the receiver through it.
func (s *Set) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports the number of tags currently in the set.
func (s *Set) Len() int { return len(s.order) }
