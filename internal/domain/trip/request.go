// Package trip defines the data model of a single itinerary planning run.
package trip

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Strob0t/TripForge/internal/domain"
)

// DefaultTravelStyle is used when a request does not name one.
const DefaultTravelStyle = "standard"

// Request is an itinerary request. All fields are free text.
type Request struct {
	Destination string `json:"destination"`
	Duration    string `json:"duration"`
	Budget      string `json:"budget"`
	Interests   string `json:"interests"`
	TravelStyle string `json:"travel_style,omitempty"`
	UserInput   string `json:"user_input,omitempty"`
}

// Normalize returns a copy with surrounding whitespace removed.
func (r Request) Normalize() Request {
	return Request{
		Destination: strings.TrimSpace(r.Destination),
		Duration:    strings.TrimSpace(r.Duration),
		Budget:      strings.TrimSpace(r.Budget),
		Interests:   strings.TrimSpace(r.Interests),
		TravelStyle: strings.TrimSpace(r.TravelStyle),
		UserInput:   strings.TrimSpace(r.UserInput),
	}
}

// Validate checks that every required field is non-empty.
func (r Request) Validate() error {
	r = r.Normalize()
	for _, f := range []struct{ name, value string }{
		{"destination", r.Destination},
		{"duration", r.Duration},
		{"budget", r.Budget},
		{"interests", r.Interests},
	} {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrValidation, f.name)
		}
	}
	return nil
}

// Style returns the requested travel style or DefaultTravelStyle.
func (r Request) Style() string {
	if s := strings.TrimSpace(r.TravelStyle); s != "" {
		return s
	}
	return DefaultTravelStyle
}

// DefaultDays is the day count assumed when a duration cannot be parsed.
const DefaultDays = 3

// maxDays caps the day count derived from a free-text duration.
const maxDays = 30

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20, "thirty": 30, "couple": 2,
}

// Days derives a day count from the free-text duration, or DefaultDays when
// the duration cannot be parsed.
func (r Request) Days() int {
	if n, ok := r.ParseDays(); ok {
		return n
	}
	return DefaultDays
}

// ParseDays derives a day count from the free-text duration. The quantity
// may be digits, a spelled-out number or an article; the first unit after it
// decides the scale: "10 days" is 10, "3 nights" is 4, "a fortnight" is 14,
// "1 month" is 30 and "48 hours" is 2. A bare number counts days. Results are
// capped at 30. ok is false when no quantity or unit is found.
func (r Request) ParseDays() (n int, ok bool) {
	tokens := strings.FieldsFunc(strings.ToLower(r.Duration), func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c)
	})

	qty, counted, prevTens := 0, false, false
	for _, tok := range tokens {
		if v, err := strconv.Atoi(tok); err == nil {
			if v > 0 {
				qty, counted, prevTens = v, true, false
			}
			continue
		}
		if v, found := numberWords[tok]; found {
			if prevTens && v < 10 {
				qty += v
			} else {
				qty = v
			}
			counted, prevTens = true, v == 20 || v == 30
			continue
		}
		prevTens = false
		if tok == "a" || tok == "an" {
			qty = 1
			continue
		}
		q := max(qty, 1)
		switch strings.TrimSuffix(tok, "s") {
		case "day":
			n = q
		case "night":
			n = q + 1
		case "week":
			n = 7 * q
		case "fortnight":
			n = 14 * q
		case "month":
			n = 30 * q
		case "weekend":
			n = 2 * q
		case "hour", "hr":
			n = (q + 23) / 24
		default:
			continue
		}
		return min(max(n, 1), maxDays), true
	}
	if counted {
		return min(qty, maxDays), true
	}
	return 0, false
}
