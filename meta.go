package kdbx

import (
	w "github.com/kdbxgo/kdbx/wrappers"
)

// MemProtection records which standard fields get memory-protected
// (stream-ciphered while unlocked) by default for new entries.
type MemProtection struct {
	ProtectTitle    w.BoolWrapper `xml:"ProtectTitle"`
	ProtectUserName w.BoolWrapper `xml:"ProtectUserName"`
	ProtectPassword w.BoolWrapper `xml:"ProtectPassword"`
	ProtectURL      w.BoolWrapper `xml:"ProtectURL"`
	ProtectNotes    w.BoolWrapper `xml:"ProtectNotes"`
}

// CustomIcon is a user-supplied icon referenced by UUID from groups/entries.
type CustomIcon struct {
	UUID UUID   `xml:"UUID"`
	Data string `xml:"Data"`
}

// MetaData is the database-wide settings block.
type MetaData struct {
	Generator                  string         `xml:"Generator"`
	SettingsChanged            *w.TimeWrapper `xml:"SettingsChanged"`
	HeaderHash                 string         `xml:"HeaderHash,omitempty"`
	DatabaseName               string         `xml:"DatabaseName"`
	DatabaseNameChanged        *w.TimeWrapper `xml:"DatabaseNameChanged"`
	DatabaseDescription        string         `xml:"DatabaseDescription"`
	DatabaseDescriptionChanged *w.TimeWrapper `xml:"DatabaseDescriptionChanged"`
	DefaultUserName            string         `xml:"DefaultUserName"`
	DefaultUserNameChanged     *w.TimeWrapper `xml:"DefaultUserNameChanged"`
	MaintenanceHistoryDays     int64          `xml:"MaintenanceHistoryDays"`
	Color                      string         `xml:"Color"`
	MasterKeyChanged           *w.TimeWrapper `xml:"MasterKeyChanged"`
	MasterKeyChangeRec         int64          `xml:"MasterKeyChangeRec"`
	MasterKeyChangeForce       int64          `xml:"MasterKeyChangeForce"`
	MemoryProtection           MemProtection  `xml:"MemoryProtection"`
	CustomIcons                []CustomIcon   `xml:"CustomIcons>Icon"`
	RecycleBinEnabled          w.BoolWrapper  `xml:"RecycleBinEnabled"`
	RecycleBinUUID             UUID           `xml:"RecycleBinUUID"`
	RecycleBinChanged          *w.TimeWrapper `xml:"RecycleBinChanged"`
	EntryTemplatesGroup        string         `xml:"EntryTemplatesGroup"`
	EntryTemplatesGroupChanged *w.TimeWrapper `xml:"EntryTemplatesGroupChanged"`
	HistoryMaxItems            int64          `xml:"HistoryMaxItems"`
	HistoryMaxSize             int64          `xml:"HistoryMaxSize"`
	LastSelectedGroup          string         `xml:"LastSelectedGroup"`
	LastTopVisibleGroup        string         `xml:"LastTopVisibleGroup"`
	Binaries                   Binaries       `xml:"Binaries>Binary,omitempty"`
	CustomData                 []CustomData   `xml:"CustomData>Item"`
}

// NewMetaData returns MetaData with conservative, KeePass-compatible
// defaults: a 10-item/6MB history cap and a year of maintenance retention.
func NewMetaData() *MetaData {
	now := w.Now()
	return &MetaData{
		Generator:              "kdbx",
		SettingsChanged:        &now,
		MasterKeyChanged:       &now,
		MasterKeyChangeRec:     -1,
		MasterKeyChangeForce:   -1,
		HistoryMaxItems:        10,
		HistoryMaxSize:         6291456,
		MaintenanceHistoryDays: 365,
	}
}

func (md *MetaData) setFormatted(formatted bool) {
	for _, t := range []*w.TimeWrapper{
		md.SettingsChanged, md.DatabaseNameChanged, md.DatabaseDescriptionChanged,
		md.DefaultUserNameChanged, md.MasterKeyChanged, md.RecycleBinChanged,
		md.EntryTemplatesGroupChanged,
	} {
		if t != nil {
			t.Formatted = formatted
		}
	}
}
