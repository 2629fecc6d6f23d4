package kdbx

import (
	"encoding/xml"

	w "github.com/kdbxgo/kdbx/wrappers"
)

// Entry is one password record: a UUID, display metadata, a set of
// key/value string fields (some protected), attachments, and history.
type Entry struct {
	UUID            UUID              `xml:"UUID"`
	IconID          int64             `xml:"IconID"`
	CustomIconUUID  UUID              `xml:"CustomIconUUID"`
	ForegroundColor string            `xml:"ForegroundColor"`
	BackgroundColor string            `xml:"BackgroundColor"`
	OverrideURL     string            `xml:"OverrideURL"`
	Tags            string            `xml:"Tags"`
	Times           TimeData          `xml:"Times"`
	Values          []ValueData       `xml:"String,omitempty"`
	AutoType        AutoTypeData      `xml:"AutoType"`
	Histories       []History         `xml:"History"`
	Binaries        []BinaryReference `xml:"Binary,omitempty"`
	CustomData      []CustomData      `xml:"CustomData>Item"`
}

// NewEntry returns an Entry with a fresh UUID and time data.
func NewEntry() Entry {
	return Entry{
		UUID:  NewUUID(),
		Times: NewTimeData(),
	}
}

func (e *Entry) setFormatted(formatted bool) {
	e.Times.setFormatted(formatted)
	for i := range e.Histories {
		e.Histories[i].setFormatted(formatted)
	}
}

// Get returns the field named key, or nil if absent.
func (e *Entry) Get(key string) *ValueData {
	for i := range e.Values {
		if e.Values[i].Key == key {
			return &e.Values[i]
		}
	}
	return nil
}

// GetContent returns the content of the field named key, or "" if absent.
func (e *Entry) GetContent(key string) string {
	if v := e.Get(key); v != nil {
		return v.Value.Content
	}
	return ""
}

// GetIndex returns the position of the field named key in e.Values, or -1.
func (e *Entry) GetIndex(key string) int {
	for i := range e.Values {
		if e.Values[i].Key == key {
			return i
		}
	}
	return -1
}

// GetTitle returns the entry's Title field.
func (e *Entry) GetTitle() string { return e.GetContent("Title") }

// GetPassword returns the entry's Password field.
func (e *Entry) GetPassword() string { return e.GetContent("Password") }

// GetUserName returns the entry's UserName field.
func (e *Entry) GetUserName() string { return e.GetContent("UserName") }

// PushHistory snapshots the entry's current state into its History list,
// the way KeePass does immediately before an edit is applied, so the
// snapshot always reflects the pre-edit values.
func (e *Entry) PushHistory() {
	snapshot := *e
	snapshot.Histories = nil
	snapshot.Values = append([]ValueData(nil), e.Values...)
	snapshot.Binaries = append([]BinaryReference(nil), e.Binaries...)
	snapshot.CustomData = append([]CustomData(nil), e.CustomData...)
	snapshot.AutoType.Associations = append([]AutoTypeAssociation(nil), e.AutoType.Associations...)
	if len(e.Histories) == 0 {
		e.Histories = []History{{}}
	}
	e.Histories[0].Entries = append(e.Histories[0].Entries, snapshot)
}

// History is a list of prior versions of an entry.
type History struct {
	Entries []Entry `xml:"Entry"`
}

func (h *History) setFormatted(formatted bool) {
	for i := range h.Entries {
		h.Entries[i].setFormatted(formatted)
	}
}

// ValueData is one entry field: a name and a (possibly protected) value.
type ValueData struct {
	Key   string `xml:"Key"`
	Value V      `xml:"Value"`
}

// V wraps a field's text content with its Protected flag, which marks it as
// stream-ciphered while the document is in its "locked" in-memory state.
type V struct {
	Content   string        `xml:",chardata"`
	Protected w.BoolWrapper `xml:"Protected,attr,omitempty"`
}

// AutoTypeData configures auto-type keystroke sequences for an entry.
type AutoTypeData struct {
	Enabled                 w.BoolWrapper         `xml:"Enabled"`
	DataTransferObfuscation int64                 `xml:"DataTransferObfuscation"`
	DefaultSequence         string                `xml:"DefaultSequence"`
	Associations            []AutoTypeAssociation `xml:"Association,omitempty"`
}

// AutoTypeAssociation binds a keystroke sequence to a target window title.
type AutoTypeAssociation struct {
	Window            string `xml:"Window"`
	KeystrokeSequence string `xml:"KeystrokeSequence"`
}

// CustomData is a plugin-defined key/value pair attached to an entry,
// group, or the database's metadata.
type CustomData struct {
	XMLName xml.Name `xml:"Item"`
	Key     string   `xml:"Key"`
	Value   string   `xml:"Value"`
}
