package catalog

import (
	"database/sql"
	"fmt"
)

// PostgresService implements Service using PostgreSQL. Catalog rows are
// written by an external scraper; this service only reads them and
// manages per-user selections.
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService.
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

// Departments lists all departments present in the catalog.
func (s *PostgresService) Departments() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT department FROM course_catalog ORDER BY department`)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var departments []string
	for rows.Next() {
		var department string
		if err := rows.Scan(&department); err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		departments = append(departments, department)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate departments: %w", err)
	}
	return departments, nil
}

// ListCourses returns every course section offered in a semester.
func (s *PostgresService) ListCourses(semesterSeason string, semesterYear int16) ([]CourseSection, error) {
	query := `
		SELECT cc.course_id, cc.semester_season, cc.semester_year, cc.college,
		       cc.department, cc.course_code, cc.title, cc.credits,
		       csc.course_section, csc.open_seats, csc.instructor, csc.location, csc.schedule
		FROM course_catalog cc
		INNER JOIN course_sections csc ON cc.course_id = csc.course_id
		WHERE cc.semester_season = $1 AND cc.semester_year = $2
		ORDER BY cc.department, cc.course_code, csc.course_section
	`
	rows, err := s.db.Query(query, semesterSeason, semesterYear)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var results []CourseSection
	for rows.Next() {
		var cs CourseSection
		if err := rows.Scan(
			&cs.Course.ID, &cs.Course.SemesterSeason, &cs.Course.SemesterYear,
			&cs.Course.College, &cs.Course.Department, &cs.Course.Code,
			&cs.Course.Title, &cs.Course.Credits,
			&cs.Section.Name, &cs.Section.OpenSeats, &cs.Section.Instructor,
			&cs.Section.Location, &cs.Section.Schedule,
		); err != nil {
			return nil, fmt.Errorf("failed to scan course section: %w", err)
		}
		results = append(results, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate courses: %w", err)
	}
	return results, nil
}

// AddSelection records a target course for the user. ON CONFLICT makes
// a repeated add a no-op.
func (s *PostgresService) AddSelection(username string, courseID int64, section string) error {
	query := `
		INSERT INTO user_course_selections (username, course_id, course_section)
		VALUES ($1, $2, $3)
		ON CONFLICT (username, course_id, course_section) DO NOTHING
	`
	if _, err := s.db.Exec(query, username, courseID, section); err != nil {
		return fmt.Errorf("failed to add selection: %w", err)
	}
	return nil
}

// RemoveSelection drops a target course for the user.
func (s *PostgresService) RemoveSelection(username string, courseID int64, section string) error {
	query := `
		DELETE FROM user_course_selections
		WHERE username = $1 AND course_id = $2 AND course_section = $3
	`
	if _, err := s.db.Exec(query, username, courseID, section); err != nil {
		return fmt.Errorf("failed to remove selection: %w", err)
	}
	return nil
}

// ListSelections returns the user's standing target courses.
func (s *PostgresService) ListSelections(username string) ([]Selection, error) {
	rows, err := s.db.Query(`
		SELECT course_id, course_section FROM user_course_selections
		WHERE username = $1
		ORDER BY course_id, course_section
	`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list selections: %w", err)
	}
	defer rows.Close()

	var selections []Selection
	for rows.Next() {
		var sel Selection
		if err := rows.Scan(&sel.CourseID, &sel.Section); err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		selections = append(selections, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate selections: %w", err)
	}
	return selections, nil
}
