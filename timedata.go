package kdbx

import (
	w "github.com/kdbxgo/kdbx/wrappers"
)

// TimeData holds the creation/modification/access/expiry bookkeeping shared
// by groups and entries.
type TimeData struct {
	CreationTime         *w.TimeWrapper `xml:"CreationTime"`
	LastModificationTime *w.TimeWrapper `xml:"LastModificationTime"`
	LastAccessTime       *w.TimeWrapper `xml:"LastAccessTime"`
	ExpiryTime           *w.TimeWrapper `xml:"ExpiryTime"`
	Expires              w.BoolWrapper  `xml:"Expires"`
	UsageCount           int64          `xml:"UsageCount"`
	LocationChanged      *w.TimeWrapper `xml:"LocationChanged"`
}

// NewTimeData returns a TimeData with the creation, modification, access
// and location-changed timestamps set to now, no ExpiryTime, and Expires
// false.
func NewTimeData() TimeData {
	now := w.Now()
	return TimeData{
		CreationTime:         &now,
		LastModificationTime: &now,
		LastAccessTime:       &now,
		LocationChanged:      &now,
		Expires:              w.NewBoolWrapper(false),
	}
}

// setFormatted switches every timestamp between the v3.1 RFC3339 text form
// (formatted=true) and the v4 base64-seconds form (formatted=false).
func (td *TimeData) setFormatted(formatted bool) {
	for _, t := range []*w.TimeWrapper{td.CreationTime, td.LastModificationTime, td.LastAccessTime, td.ExpiryTime, td.LocationChanged} {
		if t != nil {
			t.Formatted = formatted
		}
	}
}
