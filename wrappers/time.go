package wrappers

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// epochOffsetSeconds is time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).Unix():
// the Unix time of the KDBX4 time epoch (0001-01-01T00:00:00Z), which is
// negative. KDBX4 timestamps are seconds-since-0001-01-01, stored
// as a little-endian int64 then base64'd; subtracting this offset from
// time.Time.Unix() recovers that count directly, in either direction, using
// Go's own proleptic-Gregorian calendar math rather than a hand-rolled leap
// year calculation. Years 1 and 9999 are exercised explicitly in tests.
const epochOffsetSeconds int64 = -62135596800

// ErrYearOutsideOfRange is returned when a time value's year falls outside
// what KDBX4's format field (or the XML datetime format) can represent.
var ErrYearOutsideOfRange = errors.New("kdbx: year outside of representable range [1,9999]")

// TimeWrapper marshals a time.Time either as RFC3339 text (KDBX 3.1) or as
// a base64'd little-endian count of seconds since 0001-01-01 (KDBX 4),
// selected by Formatted.
type TimeWrapper struct {
	Formatted bool
	Time      time.Time
}

// Now returns a TimeWrapper for the current instant in UTC, defaulting to
// the v3.1 formatted representation; databases built for v4 flip Formatted
// to false before encoding.
func Now() TimeWrapper {
	return TimeWrapper{Formatted: true, Time: time.Now().In(time.UTC)}
}

// MarshalText implements encoding.TextMarshaler.
func (tw TimeWrapper) MarshalText() ([]byte, error) {
	t := tw.Time.In(time.UTC)
	if y := t.Year(); y < 1 || y > 9999 {
		return nil, ErrYearOutsideOfRange
	}

	if tw.Formatted {
		return t.AppendFormat(make([]byte, 0, len(time.RFC3339)), time.RFC3339), nil
	}

	total := t.Unix() - epochOffsetSeconds
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(total))
	enc := make([]byte, base64.StdEncoding.EncodedLen(len(buf)))
	base64.StdEncoding.Encode(enc, buf)
	return enc, nil
}

// UnmarshalText implements encoding.TextUnmarshaler, detecting the v3.1
// RFC3339 form first and falling back to the v4 base64 encoding.
func (tw *TimeWrapper) UnmarshalText(data []byte) error {
	if t, err := time.Parse(time.RFC3339, string(data)); err == nil {
		*tw = TimeWrapper{Formatted: true, Time: t}
		return nil
	}

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(decoded, data)
	if err != nil {
		return fmt.Errorf("kdbx: time value is neither RFC3339 nor base64: %w", err)
	}
	var seconds int64
	if err := binary.Read(bytes.NewReader(decoded[:n]), binary.LittleEndian, &seconds); err != nil {
		return err
	}
	*tw = TimeWrapper{Formatted: false, Time: time.Unix(epochOffsetSeconds+seconds, 0).In(time.UTC)}
	return nil
}

func (tw TimeWrapper) String() string {
	return fmt.Sprintf("Formatted: %v, Time: %s", tw.Formatted, tw.Time.Format(time.RFC3339))
}
