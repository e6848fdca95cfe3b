package types

import "strings"

// Inline modifier markers embedded in a requisite's stored value. The
// textual form is a serialization detail; services operate on the
// structured Modifiers value.
const (
	markerRequired    = ":!NULL:"
	markerMulti       = ":MULTI:"
	markerAliasPrefix = ":ALIAS="
)

// Modifiers is the decoded form of a requisite value: the plain slot
// name plus its optional flags.
type Modifiers struct {
	Name     string `json:"name"`
	Alias    string `json:"alias,omitempty"`
	Required bool   `json:"required"`
	Multi    bool   `json:"multi"`
}

// Encode serializes the modifiers into the inline textual form. Markers
// are written alias first, then required, then multi; decoding does not
// depend on this order.
func (m Modifiers) Encode() string {
	var b strings.Builder
	if m.Alias != "" {
		b.WriteString(markerAliasPrefix)
		b.WriteString(m.Alias)
		b.WriteByte(':')
	}
	if m.Required {
		b.WriteString(markerRequired)
	}
	if m.Multi {
		b.WriteString(markerMulti)
	}
	b.WriteString(m.Name)
	return b.String()
}

// DecodeModifiers strips every recognized marker from a stored value,
// tolerating any permutation, and returns the structured form. Text
// after the last marker is the plain name.
func DecodeModifiers(value string) Modifiers {
	var m Modifiers
	rest := value
	for {
		switch {
		case strings.HasPrefix(rest, markerRequired):
			m.Required = true
			rest = rest[len(markerRequired):]
		case strings.HasPrefix(rest, markerMulti):
			m.Multi = true
			rest = rest[len(markerMulti):]
		case strings.HasPrefix(rest, markerAliasPrefix):
			tail := rest[len(markerAliasPrefix):]
			end := strings.IndexByte(tail, ':')
			if end < 0 {
				// Unterminated alias marker; treat the remainder as the name.
				m.Name = rest
				return m
			}
			m.Alias = tail[:end]
			rest = tail[end+1:]
		default:
			m.Name = rest
			return m
		}
	}
}
