package kdbx

import (
	w "github.com/kdbxgo/kdbx/wrappers"
)

// RootData holds the database's actual content: the group tree and the
// tombstone list of permanently deleted objects (needed for sync
// reconciliation between multiple copies of a database).
type RootData struct {
	Groups         []Group             `xml:"Group"`
	DeletedObjects []DeletedObjectData `xml:"DeletedObjects>DeletedObject"`
}

// DeletedObjectData tombstones a removed group/entry/icon so that merging
// two divergent copies of the database doesn't resurrect it.
type DeletedObjectData struct {
	UUID         UUID           `xml:"UUID"`
	DeletionTime *w.TimeWrapper `xml:"DeletionTime"`
}

func (d *DeletedObjectData) setFormatted(formatted bool) {
	if d.DeletionTime != nil {
		d.DeletionTime.Formatted = formatted
	}
}

// NewRootData returns a RootData containing a single "NewDatabase" group
// with one sample entry, matching what KeePass itself seeds a fresh
// database with.
func NewRootData() *RootData {
	group := NewGroup()
	group.Name = "NewDatabase"

	entry := NewEntry()
	entry.Values = append(entry.Values, ValueData{Key: "Title", Value: V{Content: "Sample Entry"}})
	group.Entries = append(group.Entries, entry)

	return &RootData{Groups: []Group{group}}
}

func (rd *RootData) setFormatted(formatted bool) {
	for i := range rd.Groups {
		rd.Groups[i].setFormatted(formatted)
	}
	for i := range rd.DeletedObjects {
		rd.DeletedObjects[i].setFormatted(formatted)
	}
}
