package hours

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// State is the coarse open/closed classification of a store.
type State string

const (
	StateOpen    State = "open"
	StateClosed  State = "closed"
	StateUnknown State = "unknown"
)

// Color is the badge color the UI renders for a Status.
type Color string

const (
	ColorGreen  Color = "green"
	ColorRed    Color = "red"
	ColorOrange Color = "orange"
	ColorGray   Color = "gray"
)

const (
	MessageNotProvided     = "Hours not provided"
	MessageClosedToday     = "Closed today"
	MessageUnavailable     = "Hours unavailable today"
	MessageOpensTomorrow   = "Closed, opens tomorrow"
	MessageOpenAllDay      = "Open 24 hours"
	messageOpenUntilPrefix = "Open until "
	messageOpensAtPrefix   = "Opens at "
)

// Status is the result of resolving a schedule at a point in time.
type Status struct {
	State      State  `json:"status"`
	Message    string `json:"message"`
	Color      Color  `json:"color"`
	TodayHours string `json:"todayHours,omitempty"`
}

// weekdayKeys is indexed by time.Weekday (Sunday = 0).
var weekdayKeys = [7]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

var (
	range24Re = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*[-–—]\s*(\d{1,2}):(\d{2})$`)
	closedRe  = regexp.MustCompile(`\b(closed|ferme)\b`)
	range12Re = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*([AP])\.?M\.?\s*[-–—]\s*(\d{1,2}):(\d{2})\s*([AP])\.?M\.?`)
)

// Resolve classifies s at now. Weekday and clock time are read from now as
// given, so callers convert to the store's time zone first.
func Resolve(s Schedule, now time.Time) Status {
	switch sched := s.(type) {
	case Weekly:
		return resolveWeekly(sched, now)
	case FreeText:
		return resolveFreeText(sched, now)
	default:
		return Status{State: StateUnknown, Message: MessageNotProvided, Color: ColorGray}
	}
}

func resolveWeekly(w Weekly, now time.Time) Status {
	entry := strings.TrimSpace(w[weekdayKeys[now.Weekday()]])
	if entry == "" || isClosedMarker(entry) {
		return closedToday(entry)
	}

	span, ok := parseRange24(entry)
	if !ok {
		// Boundaries unknown: report open and surface the raw entry.
		return Status{State: StateOpen, Message: entry, Color: ColorGreen, TodayHours: entry}
	}
	return classify(span, clock(now), entry)
}

func resolveFreeText(text FreeText, now time.Time) Status {
	today, ok := lineFor(string(text), now.Weekday())
	if !ok {
		return Status{State: StateUnknown, Message: MessageUnavailable, Color: ColorGray}
	}

	folded := fold(today)
	switch {
	case closedRe.MatchString(folded):
		return closedToday(today)
	case strings.Contains(folded, "open 24 hours"):
		return Status{State: StateOpen, Message: MessageOpenAllDay, Color: ColorGreen, TodayHours: today}
	}

	span, ok := parseRange12(today)
	if !ok {
		return Status{State: StateUnknown, Message: MessageUnavailable, Color: ColorGray, TodayHours: today}
	}
	return classify(span, clock(now), today)
}

// span is an opening range in HHMM encoding. close < open means the range
// runs past midnight.
type span struct {
	open  int
	close int
}

func (s span) contains(t int) bool {
	if s.open <= s.close {
		return t >= s.open && t <= s.close
	}
	return t >= s.open || t <= s.close
}

func classify(s span, now int, today string) Status {
	switch {
	case s.contains(now):
		return Status{State: StateOpen, Message: messageOpenUntilPrefix + formatHHMM(s.close), Color: ColorGreen, TodayHours: today}
	case now < s.open:
		return Status{State: StateClosed, Message: messageOpensAtPrefix + formatHHMM(s.open), Color: ColorOrange, TodayHours: today}
	default:
		return Status{State: StateClosed, Message: MessageOpensTomorrow, Color: ColorRed, TodayHours: today}
	}
}

func closedToday(today string) Status {
	return Status{State: StateClosed, Message: MessageClosedToday, Color: ColorRed, TodayHours: today}
}

func clock(t time.Time) int {
	return t.Hour()*100 + t.Minute()
}

func formatHHMM(v int) string {
	return fmt.Sprintf("%02d:%02d", v/100, v%100)
}

func parseRange24(entry string) (span, bool) {
	m := range24Re.FindStringSubmatch(normalizeSpaces(entry))
	if m == nil {
		return span{}, false
	}
	open, ok := hhmm(m[1], m[2])
	if !ok {
		return span{}, false
	}
	closing, ok := hhmm(m[3], m[4])
	if !ok {
		return span{}, false
	}
	return span{open: open, close: closing}, true
}

func parseRange12(line string) (span, bool) {
	m := range12Re.FindStringSubmatch(normalizeSpaces(line))
	if m == nil {
		return span{}, false
	}
	open, ok := meridiem(m[1], m[2], m[3])
	if !ok {
		return span{}, false
	}
	closing, ok := meridiem(m[4], m[5], m[6])
	if !ok {
		return span{}, false
	}
	return span{open: open, close: closing}, true
}

// hhmm validates a 24-hour clock value. "24:00" is accepted as end of day.
func hhmm(hour, minute string) (int, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(minute)
	if err != nil || m > 59 {
		return 0, false
	}
	if h > 24 || (h == 24 && m != 0) {
		return 0, false
	}
	return h*100 + m, true
}

func meridiem(hour, minute, half string) (int, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil || h < 1 || h > 12 {
		return 0, false
	}
	m, err := strconv.Atoi(minute)
	if err != nil || m > 59 {
		return 0, false
	}
	h %= 12
	if strings.EqualFold(half, "P") {
		h += 12
	}
	return h*100 + m, true
}

// lineFor returns the text after "<Weekday>:" on the line for day.
func lineFor(text string, day time.Weekday) (string, bool) {
	name := strings.ToLower(day.String())
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToLower(line), name) {
			continue
		}
		rest := strings.TrimSpace(line[len(name):])
		return strings.TrimSpace(strings.TrimPrefix(rest, ":")), true
	}
	return "", false
}

func isClosedMarker(entry string) bool {
	switch fold(entry) {
	case "closed", "ferme":
		return true
	}
	return false
}

// fold lowercases s and strips combining marks so "Fermé" matches "ferme".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		result = s
	}
	return strings.ToLower(strings.TrimSpace(result))
}

// normalizeSpaces maps the non-breaking and thin spaces used by place
// providers ("8:30 AM") to plain spaces.
func normalizeSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, strings.TrimSpace(s))
}
