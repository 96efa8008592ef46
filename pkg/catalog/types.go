package catalog

// Course is one row of the scraped course catalog for a given semester.
type Course struct {
	ID             int64   `json:"course_id"`
	SemesterSeason string  `json:"semester_season"`
	SemesterYear   int16   `json:"semester_year"`
	College        string  `json:"college"`
	Department     string  `json:"department"`
	Code           string  `json:"course_code"`
	Title          *string `json:"title,omitempty"`
	Credits        *int16  `json:"credits,omitempty"`
}

// Section is one offered section of a course.
type Section struct {
	Name       string  `json:"section"`
	OpenSeats  *int32  `json:"open_seats,omitempty"`
	Instructor *string `json:"instructor,omitempty"`
	Location   *string `json:"location,omitempty"`
	Schedule   *string `json:"schedule,omitempty"`
}

// CourseSection pairs a course with one of its sections.
type CourseSection struct {
	Course  Course  `json:"course"`
	Section Section `json:"section"`
}

// Selection is a user's standing target: a (course, section) pair the
// bot should try to register. Session creation snapshots these.
type Selection struct {
	CourseID int64  `json:"course_id"`
	Section  string `json:"course_section"`
}

// Service defines catalog reads and per-user selection management.
type Service interface {
	// Departments lists all departments present in the catalog.
	Departments() ([]string, error)
	// ListCourses returns every course section offered in a semester.
	ListCourses(semesterSeason string, semesterYear int16) ([]CourseSection, error)
	// AddSelection records a target course for the user. Adding the
	// same pair twice is a no-op.
	AddSelection(username string, courseID int64, section string) error
	// RemoveSelection drops a target course for the user.
	RemoveSelection(username string, courseID int64, section string) error
	// ListSelections returns the user's standing target courses.
	ListSelections(username string) ([]Selection, error)
}
