package sync

import (
	"fmt"
	"time"
)

const (
	displayDateFormat = "02-01-2006"
	storageDateFormat = "2006-01-02"
)

// ToStorageDate parses a date in either the display (DD-MM-YYYY) or storage
// (YYYY-MM-DD) format and returns the storage form.
func ToStorageDate(value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("empty date")
	}
	if parsed, err := time.Parse(displayDateFormat, value); err == nil {
		return parsed.Format(storageDateFormat), nil
	}
	if parsed, err := time.Parse(storageDateFormat, value); err == nil {
		return parsed.Format(storageDateFormat), nil
	}
	return "", fmt.Errorf("unparseable date %q", value)
}

// ToDisplayDate converts a storage-format date to the display form. Unknown
// inputs are returned unchanged.
func ToDisplayDate(value string) string {
	if parsed, err := time.Parse(storageDateFormat, value); err == nil {
		return parsed.Format(displayDateFormat)
	}
	return value
}
