package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/senbet/apps/api/echo"
	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/attendance"
	"github.com/trezcool/senbet/core/student"
	"github.com/trezcool/senbet/services/email"
	"github.com/trezcool/senbet/services/spreadsheet"
	"github.com/trezcool/senbet/storage/database/inmem"
	"github.com/trezcool/senbet/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	Server
	conf    *core.Config
	stdRepo student.Repository
	mailSvc *emailsvc.ConsoleServiceMock
	logger  *testutil.MockLogger
}

// setup wires the server on in-memory storage, with the clock frozen at now.
func setup(t *testing.T, now ...core.Clock) *testApp {
	conf := core.NewTestConfig()
	conf.Attendance.ReportRecipients = []mail.Address{{Name: "Office", Address: "office@senbet.test"}}
	var clock core.Clock = core.FixedClock(testutil.Sunday)
	if len(now) > 0 {
		clock = now[0]
	}

	db := inmemdb.Open()
	stdRepo := inmemdb.NewStudentRepository(db)
	logger := new(testutil.MockLogger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	stdSvc := student.NewService(stdRepo, validate)
	attSvc := attendance.NewService(
		inmemdb.NewSessionRepository(db),
		inmemdb.NewSheetRepository(db),
		stdSvc,
		spreadsheet.NewExporter(conf, logger),
		mailSvc,
		clock,
		logger,
		conf,
	)

	srv := NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Clock:         clock,
		StudentSvc:    stdSvc,
		AttendanceSvc: attSvc,
		Validate:      validate,
		Translator:    translator,
	})
	return &testApp{Server: srv, conf: conf, stdRepo: stdRepo, mailSvc: mailSvc, logger: logger}
}

func (app *testApp) token(t *testing.T, subject string, isAdmin bool) string {
	claims := NewClaims(app.conf, subject, subject, subject+"@senbet.test", isAdmin)
	token, err := GenerateToken(app.conf, claims)
	if err != nil {
		t.Fatalf("token(): %v", err)
	}
	return token
}

func (app *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), obj), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHttpTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(newAuthRequest(tt.method, tt.path, tt.token, tt.body))
			checkCodeAndData(t, tt, rec)
		})
	}
}
