// Package wrappers provides XML marshaling helpers for the oddities of the
// KeePass inner document format: booleans spelled "True"/"False" (and a
// handful of synonyms on read), and a three-state nullable boolean.
package wrappers

import (
	"encoding/xml"
	"strings"
)

func parseBoolValue(val string) bool {
	switch strings.ToLower(val) {
	case "true", "yes", "1", "enabled", "checked":
		return true
	default:
		return false
	}
}

// BoolWrapper marshals to "True"/"False" and accepts a few synonyms on
// unmarshal, matching the values different KeePass-family tools emit.
type BoolWrapper struct {
	Bool bool
}

// NewBoolWrapper wraps value for use as a struct field default.
func NewBoolWrapper(value bool) BoolWrapper {
	return BoolWrapper{Bool: value}
}

// MarshalXML writes the wrapped value as an element.
func (b BoolWrapper) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	val := "False"
	if b.Bool {
		val = "True"
	}
	return e.EncodeElement(val, start)
}

// UnmarshalXML reads the wrapped value from an element.
func (b *BoolWrapper) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var val string
	if err := d.DecodeElement(&val, &start); err != nil {
		return err
	}
	b.Bool = parseBoolValue(val)
	return nil
}

// MarshalXMLAttr writes the wrapped value as an attribute.
func (b BoolWrapper) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	val := "False"
	if b.Bool {
		val = "True"
	}
	return xml.Attr{Name: name, Value: val}, nil
}

// UnmarshalXMLAttr reads the wrapped value from an attribute.
func (b *BoolWrapper) UnmarshalXMLAttr(attr xml.Attr) error {
	b.Bool = parseBoolValue(attr.Value)
	return nil
}

// NullableBoolWrapper additionally allows the "null" sentinel KeePass uses
// for "not configured" group settings (EnableAutoType, EnableSearching).
type NullableBoolWrapper struct {
	Bool  bool
	Valid bool
}

// NewNullableBoolWrapper wraps value as a definite (non-null) state.
func NewNullableBoolWrapper(value bool) NullableBoolWrapper {
	return NullableBoolWrapper{Bool: value, Valid: true}
}

// MarshalXML writes "null", "True" or "False".
func (b NullableBoolWrapper) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	val := "null"
	if b.Valid {
		val = "False"
		if b.Bool {
			val = "True"
		}
	}
	return e.EncodeElement(val, start)
}

// UnmarshalXML reads "null", "True" or "False".
func (b *NullableBoolWrapper) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var val string
	if err := d.DecodeElement(&val, &start); err != nil {
		return err
	}
	if strings.EqualFold(val, "null") {
		b.Valid = false
		b.Bool = false
		return nil
	}
	b.Valid = true
	b.Bool = parseBoolValue(val)
	return nil
}
