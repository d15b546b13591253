package fiscal

import "strings"

// Address holds the discrete components of an enderDest block
type Address struct {
	Street     string // xLgr
	Number     string // nro
	Complement string // xCpl
	District   string // xBairro
	City       string // xMun
	State      string // UF
	PostalCode string // CEP, not part of the composed line
}

// Compose renders the address as a single line:
//
//	Street, Number - Complement - District - City/State
//
// Absent parts are omitted with their separator. Without a street there is no
// usable line and Compose returns "".
func (a Address) Compose() string {
	street := strings.TrimSpace(a.Street)
	if street == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString(street)

	if v := strings.TrimSpace(a.Number); v != "" {
		b.WriteString(", ")
		b.WriteString(v)
	}
	if v := strings.TrimSpace(a.Complement); v != "" {
		b.WriteString(" - ")
		b.WriteString(v)
	}
	if v := strings.TrimSpace(a.District); v != "" {
		b.WriteString(" - ")
		b.WriteString(v)
	}

	city := strings.TrimSpace(a.City)
	state := strings.TrimSpace(a.State)
	switch {
	case city != "":
		b.WriteString(" - ")
		b.WriteString(city)
		if state != "" {
			b.WriteString("/")
			b.WriteString(state)
		}
	case state != "":
		b.WriteString(" - ")
		b.WriteString(state)
	}

	return b.String()
}

// FormattedPostalCode returns the CEP as NNNNN-NNN, or the bare digits if it
// does not have eight of them
func (a Address) FormattedPostalCode() string {
	d := Digits(a.PostalCode)
	if len(d) != 8 {
		return d
	}
	return d[:5] + "-" + d[5:]
}
