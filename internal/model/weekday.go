package model

// Weekday is the 1-based teaching weekday used by the timetable API.
// The timetable only publishes Monday through Friday; Saturday/Sunday
// never appear in upstream payloads and are not representable here.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
)

// weekdayNames are the display names used in activity keys and the UI.
// They are part of the external contract (visibility-state keys embed
// them), so they must not change.
var weekdayNames = [...]string{"Mandag", "Tirsdag", "Onsdag", "Torsdag", "Fredag"}

// WeekdayFromNumber converts the API's 1..5 weekday number. The second
// return value is false for anything outside Monday..Friday; callers
// drop such events rather than erroring.
func WeekdayFromNumber(n int) (Weekday, bool) {
	if n < int(Monday) || n > int(Friday) {
		return 0, false
	}
	return Weekday(n), true
}

// Name returns the display name ("Mandag".."Fredag"). Invalid weekdays
// return the empty string.
func (d Weekday) Name() string {
	if d < Monday || d > Friday {
		return ""
	}
	return weekdayNames[d-1]
}
