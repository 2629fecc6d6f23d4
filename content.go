package kdbx

import "encoding/xml"

// DBContent is the full decrypted inner document: KDBX4's inner header
// (nil for v3.1, which carries the equivalent fields in the outer header)
// plus the Meta/Root XML tree.
type DBContent struct {
	RawData     []byte       `xml:"-"`
	InnerHeader *InnerHeader `xml:"-"`
	XMLName     xml.Name     `xml:"KeePassFile"`
	Meta        *MetaData    `xml:"Meta"`
	Root        *RootData    `xml:"Root"`
}

// NewContent returns a DBContent with fresh Meta/Root defaults. Callers
// building a KDBX4 database must also set InnerHeader (see NewDatabase).
func NewContent() *DBContent {
	return &DBContent{
		Meta: NewMetaData(),
		Root: NewRootData(),
	}
}

func (c *DBContent) setFormatted(formatted bool) {
	c.Meta.setFormatted(formatted)
	c.Root.setFormatted(formatted)
}
