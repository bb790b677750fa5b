package api

import (
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"slices"
	"strings"

	"github.com/crovest/command-center/internal/store"
)

// validator collects field problems; the first one is reported.
type validator struct {
	problems []string
}

func (v *validator) addf(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.addf("%s is required", field)
	}
}

func (v *validator) oneOf(field, value string, allowed []string) {
	if value != "" && !slices.Contains(allowed, value) {
		v.addf("%s must be one of %s", field, strings.Join(allowed, ", "))
	}
}

func (v *validator) between(field string, value, lo, hi int) {
	if value < lo || value > hi {
		v.addf("%s must be between %d and %d", field, lo, hi)
	}
}

func (v *validator) date(field, value string) {
	if value != "" && !store.ValidDate(value) {
		v.addf("%s must be a YYYY-MM-DD date", field)
	}
}

func (v *validator) httpURL(field, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.addf("%s must be an http(s) URL", field)
	}
}

func (v *validator) email(field, value string) {
	if value == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		v.addf("%s must be a valid email address", field)
	}
}

// ok writes a 400 for the first problem and reports whether there were none.
func (v *validator) ok(w http.ResponseWriter) bool {
	if len(v.problems) == 0 {
		return true
	}
	writeError(w, http.StatusBadRequest, v.problems[0])
	return false
}

// monthYear validates an optional month/year pair; both or neither.
func monthYear(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	month, hasMonth, err := queryInt(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	year, hasYear, err := queryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	if hasMonth != hasYear {
		writeError(w, http.StatusBadRequest, "month and year must be given together")
		return 0, 0, false
	}
	if hasMonth && (month < 1 || month > 12) {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return 0, 0, false
	}
	return month, year, true
}
