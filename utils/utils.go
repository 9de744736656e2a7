package utils

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
)

// FILETIME counts 100ns ticks since 1601-01-01 UTC.  Go's zero time is year 1, so we need
// the gap between 1601 and 1970 to get anywhere sensible.
const filetime_epoch_offset = 116444736000000000

func Filetime_to_time(ft uint64) time.Time {
	if ft > math.MaxInt64 {
		// Nonsense from a damaged save; pin it rather than wrap round to 1601
		ft = math.MaxInt64
	}
	ticks := int64(ft) - filetime_epoch_offset
	return time.Unix(ticks/10000000, (ticks%10000000)*100).UTC()
}

func Time_to_filetime(t time.Time) uint64 {
	return uint64(t.Unix()*10000000 + int64(t.Nanosecond()/100) + filetime_epoch_offset)
}

const TIMESTAMP_FORMAT = "2006/01/02 - 15:04:05"

func Format_timestamp(ft uint64) string {
	return Filetime_to_time(ft).Format(TIMESTAMP_FORMAT)
}

// Parse_timestamp is the inverse of Format_timestamp (UTC, like the file itself)
func Parse_timestamp(s string) (uint64, error) {
	t, err := time.Parse(TIMESTAMP_FORMAT, strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "bad timestamp %q", s)
	}
	return Time_to_filetime(t), nil
}

// Format_elapsed shows seconds played as e.g. "03h 25m 07s".  Hours keep counting past 24.
func Format_elapsed(seconds uint64) string {
	return fmt.Sprintf("%02dh %02dm %02ds", seconds/3600, (seconds/60)%60, seconds%60)
}

// smash smashes "funny characters" (which includes anything that's remotely tricky to type into a command line) in a string into the '_' character
func smash(in string) string {
	out := ""
	for _, c := range in {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			out += string(c)
		} else {
			out += "_"
		}
	}
	return out
}

// string matching functions, in strictly increasing order of desperation
var fuzzy = []func(input string, candidate string) bool{
	func(i string, c string) bool { return i == c },
	func(i string, c string) bool { return strings.ToUpper(i) == strings.ToUpper(c) },
	func(i string, c string) bool { return smash(strings.ToUpper(i)) == smash(strings.ToUpper(c)) },
	func(i string, c string) bool {
		return strings.HasPrefix(smash(strings.ToUpper(c)), smash(strings.ToUpper(i)))
	},
	func(i string, c string) bool {
		return strings.Contains(smash(strings.ToUpper(c)), smash(strings.ToUpper(i)))
	},
}

// Fuzzy_reverse_lookup looks up "backwards" in a translation map
//
// trans: map to be looked up in
// to: map value
// what: type of thing to be looked up, as a human-readable string.  Used only in error construction
//
// Returns: K: lookup result key, string: lookup result value (not necessarily equal to "to" due to fuzzy matching)
func Fuzzy_reverse_lookup[K comparable](trans map[K]string, to string, what string) (K, string, error) {
	var K0 K

	for _, match := range fuzzy {
		matches := []K{}
		names := []string{}
		for k, v := range trans {
			if match(to, v) {
				matches = append(matches, k)
				names = append(names, v)
			}
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			return K0, "", errors.Errorf("Ambiguous argument: %v could be anything from {%v}", to, strings.Join(names, ", "))
		}

		return matches[0], names[0], nil
	}

	return K0, "", errors.New(to + " could not be matched to a valid value for " + what)
}
