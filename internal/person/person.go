// Package person defines the person record imported from CSV uploads and
// the row-level validation that decides whether a parsed CSV row becomes
// an insertable record.
package person

import "strings"

// Required CSV column names. Headers are matched case-insensitively and
// any additional columns in the upload are ignored.
const (
	ColName  = "name"
	ColAge   = "age"
	ColEmail = "email"
)

// Columns lists the required columns in template order.
var Columns = []string{ColName, ColAge, ColEmail}

// RawRow is one parsed CSV line as a column-name -> value mapping.
// A column absent from the upload simply has no key; Validate treats a
// missing key the same as an empty string.
type RawRow map[string]string

// Record is a validated, trimmed person ready for persistence.
// Age stays a string: the upload format makes no numeric promise about it,
// only that it is non-empty.
type Record struct {
	Name  string `json:"name"`
	Age   string `json:"age"`
	Email string `json:"email"`
}

// Validate maps a raw CSV row to a normalized Record.
//
// Each required field is trimmed of surrounding whitespace; a missing key
// counts as empty. If any of the three trimmed fields is empty the row is
// rejected and ok is false. Validate is pure: same row in, same result out,
// regardless of what other rows the upload contains.
func Validate(row RawRow) (Record, bool) {
	rec := Record{
		Name:  strings.TrimSpace(row[ColName]),
		Age:   strings.TrimSpace(row[ColAge]),
		Email: strings.TrimSpace(row[ColEmail]),
	}
	if rec.Name == "" || rec.Age == "" || rec.Email == "" {
		return Record{}, false
	}
	return rec, true
}
