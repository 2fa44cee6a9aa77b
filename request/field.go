// Package request implements the RequestPage/Group/Field form-tree model
// used by protocols to prompt users.
package request

import (
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
)

// Kind is a Field's value type.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindBool
	KindChoice
	KindAccount
	KindImage
	KindDatasheet
	KindLabel
)

// Validator reports whether a field's current value is acceptable.
type Validator func(value any) bool

// Field is one prompt element. Concrete typed access goes through the
// page (Get*), not the field directly: typed accessors contract-fail if
// the id maps to a field of the wrong type.
type Field struct {
	ID        string
	Kind      Kind
	Label     string
	Required  bool
	Visible   bool
	Sensitive bool
	Tooltip   string
	Validate  Validator

	// Choices backs KindChoice fields: label -> stored value.
	Choices map[string]any

	// AccountFilter backs KindAccount fields (supplemented from
	// purplerequestfieldaccount.c): only accounts for which it returns
	// true are offered as candidates. Nil means "no filter".
	AccountFilter func(protocolID string) bool

	value any
}

// NewField constructs a field. Visible defaults to true. If id is empty,
// a fresh one is generated — most fields are looked up by a protocol-
// chosen name, but generated form elements (e.g. a datasheet row) don't
// always have one.
func NewField(id string, kind Kind, label string) *Field {
	if id == "" {
		id = uuid.NewString()
	}
	return &Field{ID: id, Kind: kind, Label: label, Visible: true}
}

// SetValue decodes raw into the field's native type via mapstructure,
// the same loosely-typed-map decode idiom used for Account settings.
func (f *Field) SetValue(raw any) error {
	switch f.Kind {
	case KindBool:
		var v bool
		if err := mapstructure.Decode(raw, &v); err != nil {
			return err
		}
		f.value = v
	case KindInt:
		var v int64
		if err := mapstructure.Decode(raw, &v); err != nil {
			return err
		}
		f.value = v
	default:
		f.value = raw
	}
	return nil
}

// Value returns the field's current raw value.
func (f *Field) Value() any { return f.value }

// HasValue reports whether the field currently holds a non-nil value.
// Zero values such as "", 0 or false count as a value.
func (f *Field) HasValue() bool { return f.value != nil }

// Valid reports whether the field's validator (if any) accepts its
// current value.
func (f *Field) Valid() bool {
	if f.Validate == nil {
		return true
	}
	return f.Validate(f.value)
}
