package echoapi_test

import (
	"bytes"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/senbet/apps/api/echo"
	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
	"github.com/trezcool/senbet/core/student"
	"github.com/trezcool/senbet/services/spreadsheet"
	"github.com/trezcool/senbet/tests"
)

type attendanceFixture struct {
	*testApp
	s1, s2, s3 student.Student
	owner      string
}

func setupAttendance(t *testing.T, clock ...core.Clock) *attendanceFixture {
	app := setup(t, clock...)
	return &attendanceFixture{
		testApp: app,
		s1:      testutil.CreateStudent(t, app.stdRepo, "U-001", "Abel", "Kebede", "5", "A"),
		s2:      testutil.CreateStudent(t, app.stdRepo, "U-002", "Sara", "Tadesse", "6", "B"),
		s3:      testutil.CreateStudent(t, app.stdRepo, "U-003", "Dawit", "Abebe", "5", "B"),
		owner:   app.token(t, "teacher", false),
	}
}

func (f *attendanceFixture) start(t *testing.T) SessionResponse {
	rec := f.do(newAuthRequest(http.MethodPost, "/v1/sessions", f.owner))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess SessionResponse
	unmarshall(t, rec, &sess)
	return sess
}

func (f *attendanceFixture) call(t *testing.T, method, path, token string, wantCode int, body ...[]byte) SessionResponse {
	rec := f.do(newAuthRequest(method, path, token, body...))
	require.Equal(t, wantCode, rec.Code, rec.Body.String())
	var sess SessionResponse
	if wantCode == http.StatusOK {
		unmarshall(t, rec, &sess)
	}
	return sess
}

func statuses(v attendance.View) map[string]attendance.Status {
	got := make(map[string]attendance.Status, len(v.Students))
	for _, e := range v.Students {
		got[e.ID] = e.Status
	}
	return got
}

func Test_attendanceApi_sessionStart(t *testing.T) {
	f := setupAttendance(t)
	sess := f.start(t)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "Sene 29, 2017", sess.View.DateLabel)
	assert.True(t, sess.View.Editable)
	assert.Equal(t, []string{"5", "6"}, sess.View.Grades)
	assert.Len(t, sess.View.Students, 3)
	assert.Equal(t, attendance.Summary{Absent: 3}, sess.View.Summary)

	path := "/v1/sessions/" + sess.ID
	runHttpTests(t, f.testApp, []httpTest{
		{name: "no token", method: http.MethodGet, path: path, wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{name: "not owner", method: http.MethodGet, path: path, token: f.token(t, "other", false), wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"})},
		{name: "unknown session", method: http.MethodGet, path: "/v1/sessions/lol", token: f.owner, wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"})},
	})

	got := f.call(t, http.MethodGet, path, f.owner, http.StatusOK)
	assert.Equal(t, sess.ID, got.ID)
	got = f.call(t, http.MethodGet, path, f.token(t, "admin", true), http.StatusOK)
	assert.Equal(t, sess.ID, got.ID)
}

func Test_attendanceApi_toggles(t *testing.T) {
	f := setupAttendance(t)
	path := "/v1/sessions/" + f.start(t).ID + "/students/"

	sess := f.call(t, http.MethodPost, path+f.s1.ID+"/present", f.owner, http.StatusOK)
	sess = f.call(t, http.MethodPost, path+f.s2.ID+"/permission", f.owner, http.StatusOK)
	assert.Equal(t, map[string]attendance.Status{
		f.s1.ID: attendance.Present,
		f.s2.ID: attendance.Permission,
		f.s3.ID: attendance.Absent,
	}, statuses(sess.View))

	// mutually exclusive
	sess = f.call(t, http.MethodPost, path+f.s1.ID+"/permission", f.owner, http.StatusOK)
	assert.Equal(t, attendance.Permission, statuses(sess.View)[f.s1.ID])
	sess = f.call(t, http.MethodPost, path+f.s1.ID+"/permission", f.owner, http.StatusOK)
	assert.Equal(t, attendance.Absent, statuses(sess.View)[f.s1.ID])
	assert.Equal(t, attendance.Summary{Permission: 1, Absent: 2}, sess.View.Summary)

	runHttpTests(t, f.testApp, []httpTest{
		{
			name:     "unknown student",
			method:   http.MethodPost,
			path:     path + "lol/present",
			token:    f.owner,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: "lol: " + attendance.ErrUnknownStudent.Error()}),
		},
		{
			name:     "not owner",
			method:   http.MethodPost,
			path:     path + f.s1.ID + "/present",
			token:    f.token(t, "other", false),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
	})
}

func Test_attendanceApi_notSunday(t *testing.T) {
	f := setupAttendance(t, core.FixedClock(testutil.Monday))
	sess := f.start(t)
	assert.Equal(t, "Sene 30, 2017", sess.View.DateLabel)
	assert.False(t, sess.View.Editable)

	notEditable := marshallObj(t, httpErr{Error: "attendance can only be marked on Sundays"})
	path := "/v1/sessions/" + sess.ID
	runHttpTests(t, f.testApp, []httpTest{
		{name: "present", method: http.MethodPost, path: path + "/students/" + f.s1.ID + "/present", token: f.owner, wantCode: http.StatusBadRequest, wantData: notEditable},
		{name: "permission", method: http.MethodPost, path: path + "/students/" + f.s1.ID + "/permission", token: f.owner, wantCode: http.StatusBadRequest, wantData: notEditable},
		{name: "submit", method: http.MethodPost, path: path + "/submit", token: f.owner, wantCode: http.StatusBadRequest, wantData: notEditable},
	})

	// filtering still works
	got := f.call(t, http.MethodPut, path+"/filter", f.owner, http.StatusOK, marshallObj(t, FilterRequest{Grade: "6"}))
	assert.Len(t, got.View.Students, 1)
}

func Test_attendanceApi_sessionFilter(t *testing.T) {
	f := setupAttendance(t)
	sess := f.start(t)
	path := "/v1/sessions/" + sess.ID
	f.call(t, http.MethodPost, path+"/students/"+f.s2.ID+"/present", f.owner, http.StatusOK)

	got := f.call(t, http.MethodPut, path+"/filter", f.owner, http.StatusOK, marshallObj(t, FilterRequest{Search: "ABE", Grade: " 5 "}))
	assert.Equal(t, "ABE", got.View.Search)
	assert.Equal(t, "5", got.View.Grade)
	require.Len(t, got.View.Students, 2)
	assert.Equal(t, f.s1.ID, got.View.Students[0].ID)
	assert.Equal(t, f.s3.ID, got.View.Students[1].ID)
	// summary covers the whole roster
	assert.Equal(t, attendance.Summary{Present: 1, Absent: 2}, got.View.Summary)

	// the filter is kept
	got = f.call(t, http.MethodGet, path, f.owner, http.StatusOK)
	assert.Len(t, got.View.Students, 2)

	got = f.call(t, http.MethodPut, path+"/filter", f.owner, http.StatusOK, marshallObj(t, FilterRequest{}))
	assert.Len(t, got.View.Students, 3)
	assert.Equal(t, attendance.Present, statuses(got.View)[f.s2.ID])

	got = f.call(t, http.MethodPut, path+"/filter", f.owner, http.StatusOK, marshallObj(t, FilterRequest{Search: "ABE "}))
	assert.Equal(t, "ABE ", got.View.Search)
	assert.Empty(t, got.View.Students)

	rec := f.do(newAuthRequest(http.MethodPut, path+"/filter", f.owner, marshallObj(t, FilterRequest{Grade: "this grade is way too long"})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "grade_filter")
}

func Test_attendanceApi_sessionRefreshRoster(t *testing.T) {
	f := setupAttendance(t)
	sess := f.start(t)
	path := "/v1/sessions/" + sess.ID

	f.call(t, http.MethodPost, path+"/students/"+f.s1.ID+"/present", f.owner, http.StatusOK)
	s4 := testutil.CreateStudent(t, f.stdRepo, "U-004", "Hana", "Girma", "7", "")

	got := f.call(t, http.MethodPost, path+"/roster", f.owner, http.StatusOK)
	assert.Len(t, got.View.Students, 4)
	assert.Equal(t, attendance.Absent, statuses(got.View)[s4.ID])
	assert.Equal(t, attendance.Present, statuses(got.View)[f.s1.ID])
	assert.Equal(t, []string{"5", "6", "7"}, got.View.Grades)
}

func Test_attendanceApi_sessionSubmit(t *testing.T) {
	f := setupAttendance(t)
	sess := f.start(t)
	path := "/v1/sessions/" + sess.ID

	runHttpTests(t, f.testApp, []httpTest{
		{
			name:     "nothing marked",
			method:   http.MethodPost,
			path:     path + "/submit",
			token:    f.owner,
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, httpErr{Error: attendance.ErrNothingMarked.Error()}),
		},
	})

	f.call(t, http.MethodPost, path+"/students/"+f.s1.ID+"/present", f.owner, http.StatusOK)
	f.call(t, http.MethodPost, path+"/students/"+f.s3.ID+"/permission", f.owner, http.StatusOK)

	rec := f.do(newAuthRequest(http.MethodPost, path+"/submit", f.owner))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, spreadsheet.ContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=Attendance_Sene_29_2017.xlsx", rec.Header().Get("Content-Disposition"))

	rows, err := spreadsheet.ReadSheetRows(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, attendance.ExportRow{
		UniqueID: "U-001", FirstName: "Abel", FatherName: "Kebede", Class: "A", Status: attendance.Present, Date: "Sene 29, 2017",
	}, rows[0])
	assert.Equal(t, attendance.Absent, rows[1].Status)
	assert.Equal(t, attendance.Permission, rows[2].Status)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Attendance - Sene 29, 2017", sent[0].Subject)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, rec.Body.Bytes(), sent[0].Attachments[0].Content)
	assert.Len(t, f.logger.Entries("INFO"), 1)

	// records are cleared
	got := f.call(t, http.MethodGet, path, f.owner, http.StatusOK)
	assert.Equal(t, attendance.Summary{Absent: 3}, got.View.Summary)

	// archived
	admin := f.token(t, "admin", true)
	sheetsPath := "/v1/sheets?" + url.Values{"date": {"Sene 29, 2017"}}.Encode()
	runHttpTests(t, f.testApp, []httpTest{
		{name: "sheets", method: http.MethodGet, path: sheetsPath, token: admin, wantCode: http.StatusOK, wantData: marshallObj(t, rows)},
		{name: "sheets (unknown date)", method: http.MethodGet, path: "/v1/sheets?date=lol", token: admin, wantCode: http.StatusOK, wantData: []byte("[]")},
		{name: "sheets (no date)", method: http.MethodGet, path: "/v1/sheets", token: admin, wantCode: http.StatusBadRequest, wantData: []byte(`{"date": "this field is required"}`)},
		{name: "sheets (not admin)", method: http.MethodGet, path: sheetsPath, token: f.owner, wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "permission denied"})},
	})

	t.Run("sheets (xlsx)", func(t *testing.T) {
		rec := f.do(newAuthRequest(http.MethodGet, sheetsPath+"&format=xlsx", admin))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "attachment; filename=Attendance_Sene_29_2017.xlsx", rec.Header().Get("Content-Disposition"))
		got, err := spreadsheet.ReadSheetRows(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		assert.Equal(t, rows, got)
	})
}

func Test_attendanceApi_sessionDestroy(t *testing.T) {
	f := setupAttendance(t)
	path := "/v1/sessions/" + f.start(t).ID

	f.call(t, http.MethodDelete, path, f.token(t, "other", false), http.StatusForbidden)
	f.call(t, http.MethodDelete, path, f.owner, http.StatusNoContent)
	f.call(t, http.MethodGet, path, f.owner, http.StatusNotFound)
}
