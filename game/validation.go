package game

import (
	"regexp"
	"unicode/utf8"
)

var (
	// allianceNameRE matches names made only of letters and digits of any script.
	allianceNameRE = regexp.MustCompile(`^[\p{L}\p{N}]+$`)
)

func isAllianceName(name string) bool {
	return allianceNameRE.MatchString(name)
}

// shorterThan counts characters, not bytes.
func shorterThan(name string, limit int) bool {
	return utf8.RuneCountInString(name) < limit
}
