package backend

import (
	"net/url"
	"strconv"
)

// Filter narrows an admin query. Every field is optional; empty fields are
// left out of the generated query entirely, never sent as empty strings.
type Filter struct {
	Company string
	Student string
	Start   string // ISO date, inclusive
	End     string // ISO date, inclusive
	Page    int
	Limit   int
}

// Values serializes the non-empty fields.
func (f Filter) Values() url.Values {
	v := url.Values{}
	if f.Company != "" {
		v.Set("company", f.Company)
	}
	if f.Student != "" {
		v.Set("student", f.Student)
	}
	if f.Start != "" {
		v.Set("start", f.Start)
	}
	if f.End != "" {
		v.Set("end", f.End)
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	return v
}

// Empty reports whether the filter imposes no constraint.
func (f Filter) Empty() bool {
	return f.Company == "" && f.Student == "" && f.Start == "" && f.End == ""
}
