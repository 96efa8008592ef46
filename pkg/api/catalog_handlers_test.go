package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrierbot/registrar/pkg/catalog"
)

func TestListDepartments(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/v1/catalog/departments", "key-jdoe", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var departments []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&departments))
	assert.Equal(t, []string{"CAS CS", "ENG EC"}, departments)
}

func TestListCourses(t *testing.T) {
	title := "Intro to Computer Science"
	course := catalog.CourseSection{
		Course: catalog.Course{
			ID:             101,
			SemesterSeason: "Fall",
			SemesterYear:   2026,
			College:        "CAS",
			Department:     "CS",
			Code:           "111",
			Title:          &title,
		},
		Section: catalog.Section{Name: "A1"},
	}

	t.Run("lists a semester's courses", func(t *testing.T) {
		srv := newTestServer(t)
		srv.catalog.courses = []catalog.CourseSection{course}

		rec := doJSON(t, srv, http.MethodGet, "/v1/catalog/courses?semester_season=Fall&semester_year=2026", "key-jdoe", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []catalog.CourseSection
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, int64(101), got[0].Course.ID)
		assert.Equal(t, "A1", got[0].Section.Name)
	})

	t.Run("requires a season", func(t *testing.T) {
		srv := newTestServer(t)

		rec := doJSON(t, srv, http.MethodGet, "/v1/catalog/courses?semester_year=2026", "key-jdoe", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("requires a valid year", func(t *testing.T) {
		srv := newTestServer(t)

		rec := doJSON(t, srv, http.MethodGet, "/v1/catalog/courses?semester_season=Fall&semester_year=nope", "key-jdoe", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSelections(t *testing.T) {
	t.Run("add, list, remove round trip", func(t *testing.T) {
		srv := newTestServer(t)

		rec := doJSON(t, srv, http.MethodPut, "/v1/selections", "key-jdoe",
			SelectionRequest{CourseID: 101, CourseSection: "A1"})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, srv, http.MethodGet, "/v1/selections", "key-jdoe", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var selections []catalog.Selection
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&selections))
		require.Len(t, selections, 1)
		assert.Equal(t, int64(101), selections[0].CourseID)

		rec = doJSON(t, srv, http.MethodDelete, "/v1/selections", "key-jdoe",
			SelectionRequest{CourseID: 101, CourseSection: "A1"})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, srv, http.MethodGet, "/v1/selections", "key-jdoe", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		selections = nil
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&selections))
		assert.Empty(t, selections)
	})

	t.Run("add validates the payload", func(t *testing.T) {
		srv := newTestServer(t)

		rec := doJSON(t, srv, http.MethodPut, "/v1/selections", "key-jdoe",
			SelectionRequest{CourseID: 0, CourseSection: "A1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = doJSON(t, srv, http.MethodPut, "/v1/selections", "key-jdoe",
			SelectionRequest{CourseID: 101, CourseSection: ""})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("selections are scoped to the caller", func(t *testing.T) {
		srv := newTestServer(t)

		rec := doJSON(t, srv, http.MethodPut, "/v1/selections", "key-jdoe",
			SelectionRequest{CourseID: 101, CourseSection: "A1"})
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, srv, http.MethodGet, "/v1/selections", "key-asmith", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var selections []catalog.Selection
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&selections))
		assert.Empty(t, selections)
	})
}
