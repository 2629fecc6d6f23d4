package kdbx

import (
	"encoding/xml"
	"io"

	w "github.com/kdbxgo/kdbx/wrappers"
)

// childOrder records whether a Group's Entry or Group children appeared
// first in the source document — the stream cipher's protected-value
// keystream must be consumed in that same order on unlock, or values come
// out corrupted. Unlocking resets it to childOrderDefault, since locking and
// XML encoding both put a group's entries before its subgroups.
type childOrder int

const (
	childOrderDefault childOrder = iota
	childOrderEntryFirst
	childOrderGroupFirst
)

// Group organizes entries and nested groups.
type Group struct {
	UUID                    UUID                  `xml:"UUID"`
	Name                    string                `xml:"Name"`
	Notes                   string                `xml:"Notes"`
	IconID                  int64                 `xml:"IconID"`
	CustomIconUUID          UUID                  `xml:"CustomIconUUID"`
	Times                   TimeData              `xml:"Times"`
	IsExpanded              w.BoolWrapper         `xml:"IsExpanded"`
	DefaultAutoTypeSequence string                `xml:"DefaultAutoTypeSequence"`
	EnableAutoType          w.NullableBoolWrapper `xml:"EnableAutoType"`
	EnableSearching         w.NullableBoolWrapper `xml:"EnableSearching"`
	LastTopVisibleEntry     string                `xml:"LastTopVisibleEntry"`
	Entries                 []Entry               `xml:"Entry,omitempty"`
	Groups                  []Group               `xml:"Group,omitempty"`
	childOrder              childOrder            `xml:"-"`
}

// NewGroup returns a Group with a fresh UUID, time data, and auto-type/
// searching enabled by default.
func NewGroup() Group {
	return Group{
		UUID:            NewUUID(),
		Times:           NewTimeData(),
		EnableAutoType:  w.NewNullableBoolWrapper(true),
		EnableSearching: w.NewNullableBoolWrapper(true),
	}
}

func (g *Group) setFormatted(formatted bool) {
	g.Times.setFormatted(formatted)
	for i := range g.Groups {
		g.Groups[i].setFormatted(formatted)
	}
	for i := range g.Entries {
		g.Entries[i].setFormatted(formatted)
	}
}

// UnmarshalXML decodes a Group element by hand rather than relying on
// struct-tag matching, so it can record whether Entry or Group children
// came first in document order.
func (g *Group) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		token, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if element, ok := token.(xml.StartElement); ok {
			if err := g.unmarshalChild(d, element); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Group) unmarshalChild(d *xml.Decoder, element xml.StartElement) error {
	switch element.Name.Local {
	case "Entry":
		if g.childOrder == childOrderDefault {
			g.childOrder = childOrderEntryFirst
		}
		var entry Entry
		if err := d.DecodeElement(&entry, &element); err != nil {
			return err
		}
		g.Entries = append(g.Entries, entry)
	case "Group":
		if g.childOrder == childOrderDefault {
			g.childOrder = childOrderGroupFirst
		}
		var group Group
		if err := d.DecodeElement(&group, &element); err != nil {
			return err
		}
		g.Groups = append(g.Groups, group)
	case "UUID":
		return d.DecodeElement(&g.UUID, &element)
	case "Name":
		return d.DecodeElement(&g.Name, &element)
	case "Notes":
		return d.DecodeElement(&g.Notes, &element)
	case "IconID":
		return d.DecodeElement(&g.IconID, &element)
	case "CustomIconUUID":
		return d.DecodeElement(&g.CustomIconUUID, &element)
	case "Times":
		return d.DecodeElement(&g.Times, &element)
	case "IsExpanded":
		return d.DecodeElement(&g.IsExpanded, &element)
	case "DefaultAutoTypeSequence":
		return d.DecodeElement(&g.DefaultAutoTypeSequence, &element)
	case "EnableAutoType":
		return d.DecodeElement(&g.EnableAutoType, &element)
	case "EnableSearching":
		return d.DecodeElement(&g.EnableSearching, &element)
	case "LastTopVisibleEntry":
		return d.DecodeElement(&g.LastTopVisibleEntry, &element)
	default:
		return d.Skip()
	}
	return nil
}
