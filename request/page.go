package request

// Group owns an ordered list of fields.
type Group struct {
	Title  string
	fields []*Field
}

// NewGroup constructs an empty Group.
func NewGroup(title string) *Group { return &Group{Title: title} }

// AddField appends f to the group.
func (g *Group) AddField(f *Field) { g.fields = append(g.fields, f) }

// Fields returns the group's fields in insertion order.
func (g *Group) Fields() []*Field { return g.fields }

// Page owns an ordered list of Groups plus a flat map keyed by field id
// for fast lookup.
type Page struct {
	groups []*Group
	byID   map[string]*Field
}

// NewPage returns an empty Page.
func NewPage() *Page { return &Page{byID: make(map[string]*Field)} }

// AddGroup appends g and indexes all of its current fields by id.
// Fields added to g after AddGroup are not auto-indexed — call
// Reindex if you mutate groups post-hoc.
func (p *Page) AddGroup(g *Group) {
	p.groups = append(p.groups, g)
	for _, f := range g.fields {
		p.byID[f.ID] = f
	}
}

// Reindex rebuilds the flat id -> field map from the current groups.
func (p *Page) Reindex() {
	p.byID = make(map[string]*Field)
	for _, g := range p.groups {
		for _, f := range g.fields {
			p.byID[f.ID] = f
		}
	}
}

// Groups returns the page's groups in insertion order.
func (p *Page) Groups() []*Group { return p.groups }

// Field looks up a field by id across all groups.
func (p *Page) Field(id string) (*Field, bool) {
	f, ok := p.byID[id]
	return f, ok
}

// AllRequiredFilled reports whether every required, visible field across
// every group has a value.
func (p *Page) AllRequiredFilled() bool {
	for _, g := range p.groups {
		for _, f := range g.fields {
			if f.Required && f.Visible && !f.HasValue() {
				return false
			}
		}
	}
	return true
}

// AllValid reports whether every field's validator (if any) accepts its
// current value.
func (p *Page) AllValid() bool {
	for _, g := range p.groups {
		for _, f := range g.fields {
			if !f.Valid() {
				return false
			}
		}
	}
	return true
}

// getTyped fetches the field for id, contract-failing (panicking, a
// programmer error) if it exists but has the wrong Kind,
// and returning (zero, false) if the id is absent.
func (p *Page) getTyped(id string, want Kind) (*Field, bool) {
	f, ok := p.byID[id]
	if !ok {
		return nil, false
	}
	if f.Kind != want {
		panic("request: field " + id + " is not of the expected kind")
	}
	return f, true
}

// GetString returns the string value for id, or "" if absent. Contract-
// fails if id maps to a non-string field.
func (p *Page) GetString(id string) string {
	f, ok := p.getTyped(id, KindString)
	if !ok {
		return ""
	}
	s, _ := f.value.(string)
	return s
}

// GetInt returns the int value for id, or 0 if absent.
func (p *Page) GetInt(id string) int64 {
	f, ok := p.getTyped(id, KindInt)
	if !ok {
		return 0
	}
	n, _ := f.value.(int64)
	return n
}

// GetBool returns the bool value for id, or false if absent.
func (p *Page) GetBool(id string) bool {
	f, ok := p.getTyped(id, KindBool)
	if !ok {
		return false
	}
	b, _ := f.value.(bool)
	return b
}
