// Package format holds presentation helpers shared by the views.
package format

import (
	"fmt"
	"time"
)

// ptBRMonths are the lowercase Brazilian Portuguese month abbreviations.
var ptBRMonths = [12]string{
	"jan", "fev", "mar", "abr", "mai", "jun",
	"jul", "ago", "set", "out", "nov", "dez",
}

// Date formats t as "dd MMM yyyy" with pt-BR month names, e.g. "15 mar 2021".
// The zero time returns an empty string.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return fmt.Sprintf("%02d %s %04d", t.Day(), ptBRMonths[t.Month()-1], t.Year())
}

// DatePtr is Date for nullable timestamps.
func DatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return Date(*t)
}
