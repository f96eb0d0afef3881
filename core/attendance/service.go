package attendance

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/senbet/core"
	"github.com/trezcool/senbet/core/student"
)

var (
	ErrSessionNotFound = errors.Wrap(core.ErrNotFound, "session")

	nowFunc   = time.Now // mockable
	newIDFunc = uuid.NewString
)

type (
	// Session is the server-held state of one user's attendance page.
	Session struct {
		ID        string    `json:"id"`
		Owner     string    `json:"owner"`
		State     State     `json:"state"`
		CreatedAt time.Time `json:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at"` // UTC
	}

	SessionRepository interface {
		CreateSession(ctx context.Context, sess Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		DeleteSession(ctx context.Context, id string) error
		// DeleteIdleSessions removes sessions not updated since `since` and returns how many were removed.
		DeleteIdleSessions(ctx context.Context, since time.Time) (int, error)
	}

	// SheetRepository archives submitted sheets.
	SheetRepository interface {
		SaveSheet(ctx context.Context, sheet Sheet) error
		QuerySheetRows(ctx context.Context, dateLabel string) ([]ExportRow, error)
	}

	// Exporter renders a sheet to a downloadable file.
	Exporter interface {
		Export(ctx context.Context, sheet Sheet) (File, error)
	}

	// Roster is where sessions get their students from.
	Roster interface {
		QueryAll(ctx context.Context) ([]student.Student, error)
	}

	Service interface {
		StartSession(ctx context.Context, owner core.Person) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		RefreshRoster(ctx context.Context, id string) (Session, error)
		TogglePresent(ctx context.Context, id, studentID string) (Session, error)
		TogglePermission(ctx context.Context, id, studentID string) (Session, error)
		SetFilter(ctx context.Context, id, search, grade string) (Session, error)
		Submit(ctx context.Context, id string, by core.Person) (File, Sheet, error)
		EndSession(ctx context.Context, id string) error
		ExpireIdleSessions(ctx context.Context, ttl time.Duration) (int, error)
		QuerySheetRows(ctx context.Context, dateLabel string) ([]ExportRow, error)
	}

	service struct {
		sessions   SessionRepository
		sheets     SheetRepository
		roster     Roster
		exporter   Exporter
		mailSvc    core.EmailService
		clock      core.Clock
		logger     core.Logger
		recipients []mail.Address

		// serializes read-modify-write of sessions
		mu sync.Mutex
	}
)

var _ Service = (*service)(nil)

func NewService(
	sessions SessionRepository,
	sheets SheetRepository,
	roster Roster,
	exporter Exporter,
	mailSvc core.EmailService,
	clock core.Clock,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		sessions:   sessions,
		sheets:     sheets,
		roster:     roster,
		exporter:   exporter,
		mailSvc:    mailSvc,
		clock:      clock,
		logger:     logger,
		recipients: conf.Attendance.ReportRecipients,
	}
}

// StartSession computes the session date from the clock and loads the roster.
// A roster that cannot be loaded is logged and replaced by an empty one.
func (svc *service) StartSession(ctx context.Context, owner core.Person) (Session, error) {
	state, err := NewState(svc.clock.Now(), svc.fetchRoster(ctx, owner))
	if err != nil {
		return Session{}, err
	}

	now := nowFunc().UTC()
	sess := Session{
		ID:        newIDFunc(),
		Owner:     owner.ID,
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sess, err = svc.sessions.CreateSession(ctx, sess)
	if err != nil {
		return Session{}, errors.Wrap(err, "creating session")
	}
	svc.logger.Debug(fmt.Sprintf("session %s started for %s (editable: %t)", sess.ID, state.DateLabel, state.Editable), owner)
	return sess, nil
}

func (svc *service) fetchRoster(ctx context.Context, owner core.Person) []student.Student {
	students, err := svc.roster.QueryAll(ctx)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("fetching roster: %v", err), errors.Wrap(err, "fetching roster"), owner)
		return []student.Student{}
	}
	return students
}

func (svc *service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.sessions.GetSession(ctx, id)
}

func (svc *service) RefreshRoster(ctx context.Context, id string) (Session, error) {
	students, err := svc.roster.QueryAll(ctx)
	if err != nil {
		return Session{}, errors.Wrap(err, "fetching roster")
	}
	return svc.dispatch(ctx, id, SetRoster{Students: students})
}

func (svc *service) TogglePresent(ctx context.Context, id, studentID string) (Session, error) {
	return svc.dispatch(ctx, id, TogglePresent{StudentID: studentID})
}

func (svc *service) TogglePermission(ctx context.Context, id, studentID string) (Session, error) {
	return svc.dispatch(ctx, id, TogglePermission{StudentID: studentID})
}

func (svc *service) SetFilter(ctx context.Context, id, search, grade string) (Session, error) {
	return svc.dispatch(ctx, id, SetFilter{Search: search, Grade: core.CleanString(grade)})
}

// dispatch applies an action to a stored session and saves the result.
func (svc *service) dispatch(ctx context.Context, id string, action Action) (Session, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	sess, err := svc.sessions.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	state, err := Reduce(sess.State, action)
	if err != nil {
		return Session{}, core.NewValidationError(err)
	}
	sess.State = state
	sess.UpdatedAt = nowFunc().UTC()
	return svc.sessions.UpdateSession(ctx, sess)
}

// Submit exports the session's sheet, starts the session over with no records,
// archives the sheet and mails it to the report recipients.
// The cleared session is saved before archiving and restored if archiving fails,
// so on failure the session is left as is and no sheet is archived.
func (svc *service) Submit(ctx context.Context, id string, by core.Person) (File, Sheet, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	sess, err := svc.sessions.GetSession(ctx, id)
	if err != nil {
		return File{}, Sheet{}, err
	}
	state, sheet, err := Submit(sess.State)
	if err != nil {
		return File{}, Sheet{}, core.NewValidationError(err)
	}
	sheet.SubmittedBy = by.Username
	sheet.SubmittedAt = nowFunc().UTC()

	file, err := svc.exporter.Export(ctx, sheet)
	if err != nil {
		return File{}, Sheet{}, errors.Wrap(err, "exporting sheet")
	}

	cleared := sess
	cleared.State = state
	cleared.UpdatedAt = sheet.SubmittedAt
	if _, err = svc.sessions.UpdateSession(ctx, cleared); err != nil {
		return File{}, Sheet{}, errors.Wrap(err, "clearing session")
	}
	if svc.sheets != nil {
		if err = svc.sheets.SaveSheet(ctx, sheet); err != nil {
			if _, rerr := svc.sessions.UpdateSession(ctx, sess); rerr != nil {
				svc.logger.Error(fmt.Sprintf("restoring session %s: %v", sess.ID, rerr), rerr, by)
			}
			return File{}, Sheet{}, errors.Wrap(err, "archiving sheet")
		}
	}

	svc.mailReport(sheet, file)
	sum := sheet.Summary()
	svc.logger.Info(
		fmt.Sprintf("attendance for %s submitted: %d present, %d permission, %d absent", sheet.DateLabel, sum.Present, sum.Permission, sum.Absent),
		by,
	)
	return file, sheet, nil
}

func (svc *service) mailReport(sheet Sheet, file File) {
	if svc.mailSvc == nil || len(svc.recipients) == 0 {
		return
	}
	msg := &core.EmailMessage{
		To:      svc.recipients,
		Subject: "Attendance - " + sheet.DateLabel,
	}
	sum := sheet.Summary()
	msg.BodyStr = fmt.Sprintf(
		"Attendance for %s was submitted by %s.\r\n\r\nPresent: %d\r\nPermission: %d\r\nAbsent: %d\r\n",
		sheet.DateLabel, sheet.SubmittedBy, sum.Present, sum.Permission, sum.Absent,
	)
	if err := msg.Attach(bytes.NewReader(file.Content), file.Name, file.ContentType); err != nil {
		svc.logger.Error(fmt.Sprintf("attaching %s: %v", file.Name, err), err)
		return
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) EndSession(ctx context.Context, id string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return svc.sessions.DeleteSession(ctx, id)
}

func (svc *service) ExpireIdleSessions(ctx context.Context, ttl time.Duration) (int, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	n, err := svc.sessions.DeleteIdleSessions(ctx, nowFunc().UTC().Add(-ttl))
	if err != nil {
		return 0, errors.Wrap(err, "deleting idle sessions")
	}
	return n, nil
}

func (svc *service) QuerySheetRows(ctx context.Context, dateLabel string) ([]ExportRow, error) {
	if svc.sheets == nil {
		return []ExportRow{}, nil
	}
	return svc.sheets.QuerySheetRows(ctx, core.CleanString(dateLabel))
}
