package model

// Course is one entry of a semester's published course list, as
// extracted from the timetable portal. Immutable once fetched.
type Course struct {
	CourseID   string `json:"courseid" validate:"required"`
	Name       string `json:"name,omitempty"`
	FullnameEN string `json:"fullname_en,omitempty"`
	FullnameNN string `json:"fullname_nn,omitempty"`
	TermID     string `json:"idtermin,omitempty"`
}

// Room describes one room descriptor attached to an event.
type Room struct {
	ID        string `json:"roomid"`
	Name      string `json:"roomname"`
	Building  string `json:"buildingname,omitempty"`
	Campus    string `json:"campusid,omitempty"`
	VideoLink bool   `json:"videolink,omitempty"`
}

// ScheduledEvent is one concrete calendar occurrence from the
// timetable API. Produced wholesale by the gateway; never mutated,
// only filtered and copied.
type ScheduledEvent struct {
	CourseID   string `json:"courseid"`
	ActivityID string `json:"aid" validate:"required"`

	// Weekday is the API's 1-based weekday (1=Monday..5=Friday).
	// Out-of-range values are preserved here and dropped downstream.
	Weekday int `json:"weekday"`
	Week    int `json:"weeknr,omitempty"`

	// DtStart / DtEnd are civil-time strings, see ParseCivil.
	DtStart string `json:"dtstart" validate:"required"`
	DtEnd   string `json:"dtend" validate:"required"`

	Summary        string   `json:"summary"`
	TeachingMethod string   `json:"teaching-method,omitempty"`
	Compulsory     bool     `json:"compulsory,omitempty"`
	Rooms          []Room   `json:"room,omitempty"`
	StudentGroups  []string `json:"studentgroups,omitempty"`
	Staffs         []string `json:"staffs,omitempty"`
}

// SemesterPlan is the per-course schedule payload returned by the
// timetable API.
type SemesterPlan struct {
	CourseID   string           `json:"courseid" validate:"required"`
	CourseName string           `json:"coursename"`
	Events     []ScheduledEvent `json:"events" validate:"dive"`
}

// ActivityKey builds the grouping key shared by the editor, the
// export filter and the layout endpoint: "{activityID}-{weekdayName}".
// The bool is false when the event's weekday falls outside
// Monday..Friday, in which case the event takes no part in grouping
// or visibility filtering.
func (e ScheduledEvent) ActivityKey() (string, bool) {
	day, ok := WeekdayFromNumber(e.Weekday)
	if !ok {
		return "", false
	}
	return e.ActivityID + "-" + day.Name(), true
}
