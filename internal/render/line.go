// Package render turns structured report lines into terminal, HTML or plain text.
//
// Callers build Line values; a Renderer decides how each segment role is
// styled. Names keep their stored spelling in Plain and are shown capitalized
// by the styled renderers.
package render

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind classifies a line.
type Kind int

const (
	KindHeading Kind = iota // "Family tree of susan:", "Parent of susan:"
	KindResult              // "mary is the parent of susan"
	KindEmpty               // "susan doesn't have any uncle."
	KindError               // "zzz does not exist in the family tree."
	KindInfo                // "Valid names are: ..."
)

func (k Kind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindResult:
		return "result"
	case KindEmpty:
		return "empty"
	case KindError:
		return "error"
	case KindInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Role says what a segment of text is.
type Role int

const (
	RolePlain    Role = iota
	RoleSubject       // the name the user asked about
	RoleRelation      // a relation title in a heading
	RoleRelative      // a name returned by a query
)

// Segment is a run of text with one role.
type Segment struct {
	Text string
	Role Role
}

// Line is one output line.
type Line struct {
	Kind     Kind
	Segments []Segment
}

// Text returns the unstyled line.
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

func plain(s string) Segment { return Segment{Text: s, Role: RolePlain} }

// FamilyHeading is the first line of a report.
func FamilyHeading(subject string) Line {
	return Line{Kind: KindHeading, Segments: []Segment{
		plain("Family tree of "),
		{Text: subject, Role: RoleSubject},
		plain(":"),
	}}
}

// RelationHeading opens the section for one relation.
func RelationHeading(relation, subject string) Line {
	return Line{Kind: KindHeading, Segments: []Segment{
		{Text: Capitalize(relation), Role: RoleRelation},
		plain(" of "),
		{Text: subject, Role: RoleSubject},
		plain(":"),
	}}
}

// Result reports one relative.
func Result(relative, relation, subject string) Line {
	return Line{Kind: KindResult, Segments: []Segment{
		{Text: relative, Role: RoleRelative},
		plain(" is the " + relation + " of "),
		{Text: subject, Role: RoleSubject},
	}}
}

// Empty reports a relation with no results.
func Empty(subject, relation string) Line {
	return Line{Kind: KindEmpty, Segments: []Segment{
		{Text: subject, Role: RoleSubject},
		plain(" doesn't have any " + relation + "."),
	}}
}

// Invalid reports an unknown subject.
func Invalid(input string) Line {
	return Line{Kind: KindError, Segments: []Segment{
		{Text: input, Role: RoleSubject},
		plain(" does not exist in the family tree."),
	}}
}

// ValidNames lists the names a user may ask about.
func ValidNames(names []string) Line {
	segs := []Segment{plain("Valid names are: ")}
	for i, n := range names {
		if i > 0 {
			segs = append(segs, plain(", "))
		}
		segs = append(segs, Segment{Text: n, Role: RoleRelative})
	}
	return Line{Kind: KindInfo, Segments: segs}
}

// Capitalize upper-cases the first rune and lower-cases the rest.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
