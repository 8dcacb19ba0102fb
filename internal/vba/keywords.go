package vba

import "strings"

// reserved words that cannot be used as identifiers
var keywords = map[string]bool{}

func init() {
	for _, k := range strings.Fields(`
		addressof alias and any as attribute boolean byref byte byval call case cbool cbyte ccur cdate
		cdbl cdec cint clng clnglng clngptr const csng cstr currency cvar cverr date debug decimal declare
		defbool defbyte defcur defdate defdbl defdec defint deflng deflnglng deflngptr defobj defsng defstr
		defvar dim do double each else elseif empty end enum eqv erase error event exit false for friend
		function get global gosub goto if imp implements in integer is let lib like long longlong longptr
		loop lset me mod new next not nothing null object on option optional or paramarray preserve print
		private property ptrsafe public raiseevent redim rem resume return rset select set single static
		step stop string sub then to true type typeof until variant wend while with withevents xor`) {
		keywords[k] = true
	}
}

// IsKeyword reports whether word is reserved.
func IsKeyword(word string) bool {
	return keywords[strings.ToLower(word)]
}

// typeSuffixes maps identifier type-hint characters to their declared type.
var typeSuffixes = map[byte]string{
	'$': "String",
	'%': "Integer",
	'&': "Long",
	'!': "Single",
	'#': "Double",
	'@': "Currency",
	'^': "LongLong",
}

// SuffixType returns the type implied by an identifier's type hint.
func SuffixType(identifier string) (string, bool) {
	if identifier == "" {
		return "", false
	}
	t, ok := typeSuffixes[identifier[len(identifier)-1]]
	return t, ok
}

// StripSuffix removes a trailing type hint.
func StripSuffix(identifier string) string {
	if _, ok := SuffixType(identifier); ok {
		return identifier[:len(identifier)-1]
	}
	return identifier
}
