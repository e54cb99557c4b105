package slips

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatNumber renders <PREFIX>-<YYYYMMDD>-<NNN>.
func FormatNumber(kind Kind, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", kind.Prefix(), day.Format("20060102"), seq)
}

// NextNumber returns the number for a new slip given the highest sequence the
// location already holds for the kind and day. attempt skips numbers that
// turned out to be taken.
func NextNumber(kind Kind, day time.Time, lastSeq, attempt int) string {
	return FormatNumber(kind, day, lastSeq+1+attempt)
}

// Sequence extracts the trailing counter of a slip number.
func Sequence(number string) (int, bool) {
	i := strings.LastIndexByte(number, '-')
	if i < 0 {
		return 0, false
	}
	seq, err := strconv.Atoi(number[i+1:])
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}
