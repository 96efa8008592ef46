package api

import (
	"net/http"

	"github.com/terrierbot/registrar/pkg/httputil"
	"github.com/terrierbot/registrar/pkg/middleware"
)

// listDepartments handles GET /v1/catalog/departments
func (s *Server) listDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := s.catalog.Departments()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, departments)
}

// listCourses handles GET /v1/catalog/courses?semester_season=&semester_year=
func (s *Server) listCourses(w http.ResponseWriter, r *http.Request) {
	season := httputil.ParseQueryString(r, "semester_season", "")
	if !httputil.RequireNonEmpty(w, season, "semester_season") {
		return
	}
	year, err := httputil.ParseQueryInt(r, "semester_year", 0)
	if err != nil || year <= 0 {
		httputil.WriteValidationError(w, "semester_year must be a positive integer")
		return
	}

	courses, err := s.catalog.ListCourses(season, int16(year))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, courses)
}

// listSelections handles GET /v1/selections
func (s *Server) listSelections(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

	selections, err := s.catalog.ListSelections(username)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, selections)
}

// addSelection handles PUT /v1/selections
func (s *Server) addSelection(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

	var req SelectionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequirePositive(w, req.CourseID, "course_id") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.CourseSection, "course_section") {
		return
	}

	if err := s.catalog.AddSelection(username, req.CourseID, req.CourseSection); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// removeSelection handles DELETE /v1/selections
func (s *Server) removeSelection(w http.ResponseWriter, r *http.Request) {
	username := middleware.AuthenticatedUsername(r)

	var req SelectionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.catalog.RemoveSelection(username, req.CourseID, req.CourseSection); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
