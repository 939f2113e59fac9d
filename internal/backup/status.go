package backup

import (
	"fmt"
	"strconv"
	"strings"
)

// Computed snapshot statuses.
const (
	StatusBackedUp   = "Backed Up"
	StatusRemoteOnly = "Drive Only"
	StatusLocalOnly  = "HA Only"
	StatusDeleted    = "Deleted"
)

// statusOverride is a status template and the arguments substituted into it
// each time the status is read.
type statusOverride struct {
	template string
	args     []any
}

// Status returns the human-facing status. An override wins, then the first
// per-source status, then a status derived from which sources hold a copy.
func (s *Snapshot) Status() string {
	if s.override != nil {
		return renderTemplate(s.override.template, s.override.args)
	}

	for _, id := range s.order {
		if status := s.sources[id].Status(); status != "" {
			return status
		}
	}

	inRemote := s.Source(SourceRemote) != nil
	inLocal := s.Source(SourceLocal) != nil
	switch {
	case inRemote && inLocal:
		return StatusBackedUp
	case inRemote:
		return StatusRemoteOnly
	case inLocal:
		return StatusLocalOnly
	default:
		return StatusDeleted
	}
}

// OverrideStatus forces Status to render template with args until
// ClearStatus is called. Placeholders are "{0}", "{1}", ... or "{}" for the
// next argument; "{{" and "}}" produce literal braces.
func (s *Snapshot) OverrideStatus(template string, args ...any) {
	s.override = &statusOverride{template: template, args: args}
}

// ClearStatus removes any override.
func (s *Snapshot) ClearStatus() {
	s.override = nil
}

// StatusDetail returns the auxiliary status text.
func (s *Snapshot) StatusDetail() string {
	return s.statusDetail
}

// SetStatusDetail sets auxiliary status text. It does not affect Status.
func (s *Snapshot) SetStatusDetail(detail string) {
	s.statusDetail = detail
}

// renderTemplate substitutes args into template. Placeholders that name a
// missing argument are left as written.
func renderTemplate(template string, args []any) string {
	var b strings.Builder
	next := 0
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch {
		case c == '{' && i+1 < len(template) && template[i+1] == '{':
			b.WriteByte('{')
			i++
		case c == '}' && i+1 < len(template) && template[i+1] == '}':
			b.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				b.WriteString(template[i:])
				return b.String()
			}
			field := template[i+1 : i+end]
			idx := next
			if field != "" {
				n, err := strconv.Atoi(field)
				if err != nil {
					b.WriteString(template[i : i+end+1])
					i += end
					continue
				}
				idx = n
			} else {
				next++
			}
			if idx < 0 || idx >= len(args) {
				b.WriteString(template[i : i+end+1])
			} else {
				fmt.Fprint(&b, args[idx])
			}
			i += end
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
