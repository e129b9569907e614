package structs

import (
	"strconv"
	"strings"
	"time"
)

// Separator splits an expiring value from its deadline, "<payload>␟<unix seconds>".
const Separator = "␟"

// SplitExpiring returns the payload and deadline of an expiring string.
// ok is false unless s holds exactly one separator followed by a parseable deadline.
func SplitExpiring(s string) (payload string, deadline float64, ok bool) {
	if strings.Count(s, Separator) != 1 {
		return s, 0, false
	}
	payload, suffix, _ := strings.Cut(s, Separator)
	deadline, err := strconv.ParseFloat(suffix, 64)
	if err != nil {
		return s, 0, false
	}
	return payload, deadline, true
}

// Expired reports whether s is an expiring string whose deadline is before now.
func Expired(s string, now time.Time) bool {
	_, deadline, ok := SplitExpiring(s)
	return ok && Epoch(now) > deadline
}

// Epoch returns t as fractional unix seconds.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromEpoch is the inverse of Epoch.
func FromEpoch(f float64) time.Time {
	return time.Unix(0, int64(f*float64(time.Second)))
}

// ExpiringAt encodes payload with an absolute deadline.
func ExpiringAt(payload string, deadline time.Time) string {
	return payload + Separator + strconv.FormatFloat(Epoch(deadline), 'f', -1, 64)
}

// ItemID strips any deadline from an item entry.
func ItemID(entry string) string {
	id, _, _ := strings.Cut(entry, Separator)
	return id
}

// ItemCategory returns the category of an "<item>@<category>" id, or "".
func ItemCategory(entry string) string {
	_, category, _ := strings.Cut(ItemID(entry), "@")
	return category
}

// MakeItemID joins an item name and a category.
func MakeItemID(name, category string) string {
	return name + "@" + category
}
