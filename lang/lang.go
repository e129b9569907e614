package lang

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/gertd/go-pluralize"
)

const (
	DefaultPattern   = "%s"
	DefaultSeparator = ","
	DefaultOperator  = "and"
)

type Enumerator struct {
	Pattern   string
	Separator string
	Operator  string
}

func (e Enumerator) Do(elements ...string) string {
	pattern, separator, operator := DefaultPattern, DefaultSeparator, DefaultOperator
	if e.Pattern != "" {
		pattern = e.Pattern
	}
	if e.Separator != "" {
		separator = e.Separator
	}
	if e.Operator != "" {
		operator = e.Operator
	}
	res := &bytes.Buffer{}
	for idx, element := range elements {
		if idx+2 < len(elements) {
			fmt.Fprintf(res, fmt.Sprintf("%s%%s ", pattern), element, separator)
		} else if idx+1 < len(elements) && len(elements) > 2 {
			fmt.Fprintf(res, fmt.Sprintf("%s%%s %%s ", pattern), element, separator, operator)
		} else if idx+1 < len(elements) {
			fmt.Fprintf(res, fmt.Sprintf("%s %%s ", pattern), element, operator)
		} else {
			fmt.Fprintf(res, pattern, element)
		}
	}
	return res.String()
}

var plurals = pluralize.NewClient()

// Remaining renders d in the largest unit among seconds, minutes, hours and days
// that keeps the amount at or above one, rounded half to even. The unit is
// always plural, "1 days" included.
func Remaining(d time.Duration) string {
	amount := d.Seconds()
	unit := "second"
	if amount >= 60 {
		amount /= 60
		unit = "minute"
		if amount >= 60 {
			amount /= 60
			unit = "hour"
			if amount >= 24 {
				amount /= 24
				unit = "day"
			}
		}
	}
	return fmt.Sprintf("%d %s", int(math.RoundToEven(amount)), plurals.Plural(unit))
}
