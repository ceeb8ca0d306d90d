package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"compliance-tracker/internal/model"
	"compliance-tracker/internal/repository"
	"compliance-tracker/pkg/mailer"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) add(u *model.User) {
	m.users[u.UserID] = u
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListNotifiable(_ context.Context) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		if _, ok := u.NotifyAddress(); ok && u.IsActive && !u.IsAdmin {
			result = append(result, *u)
		}
	}
	// 故意不排序，由 Service 保证顺序
	return result, nil
}

func (m *mockUserRepo) ListActive(_ context.Context) ([]model.User, error) {
	var result []model.User
	for _, u := range m.users {
		if u.IsActive {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

// ── Mock TestRecordRepository ──

type mockTestRecordRepo struct {
	records []model.TestRecord
	users   *mockUserRepo
	err     error
}

func newMockTestRecordRepo(users *mockUserRepo) *mockTestRecordRepo {
	return &mockTestRecordRepo{users: users}
}

func (m *mockTestRecordRepo) add(r model.TestRecord) {
	if r.TestRecordID == "" {
		r.TestRecordID = fmt.Sprintf("rec-%d", len(m.records)+1)
	}
	m.records = append(m.records, r)
}

func (m *mockTestRecordRepo) ListByDate(_ context.Context, date model.Date) ([]model.TestRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []model.TestRecord
	for _, r := range m.records {
		if r.TestDate.String() == date.String() {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockTestRecordRepo) ListByUserBetween(_ context.Context, userID string, from, to model.Date) ([]model.TestRecord, error) {
	var result []model.TestRecord
	for _, r := range m.records {
		if r.UserID == userID && inRange(r.TestDate, from, to) {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockTestRecordRepo) ListReportRows(_ context.Context, from, to model.Date) ([]model.ReportRow, error) {
	if m.err != nil {
		return nil, m.err
	}
	var rows []model.ReportRow
	for _, r := range m.records {
		if !inRange(r.TestDate, from, to) {
			continue
		}
		row := model.ReportRow{
			TestDate:   r.TestDate,
			TestTime:   r.TestTime,
			TestPeriod: r.TestPeriod,
			Passed:     r.Passed,
		}
		if u, ok := m.users.users[r.UserID]; ok {
			row.FirstName = u.FirstName
			row.LastName = u.LastName
			row.ManagerEmail = u.ManagerEmail
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TestDate.String() != rows[j].TestDate.String() {
			return rows[i].TestDate.String() > rows[j].TestDate.String()
		}
		return rows[i].TestTime > rows[j].TestTime
	})
	return rows, nil
}

// ── Mock AbsenceRepository ──

type mockAbsenceRepo struct {
	absences []model.Absence
}

func newMockAbsenceRepo() *mockAbsenceRepo {
	return &mockAbsenceRepo{}
}

func (m *mockAbsenceRepo) ListByDate(_ context.Context, date model.Date) ([]model.Absence, error) {
	var result []model.Absence
	for _, a := range m.absences {
		if a.AbsenceDate.String() == date.String() {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAbsenceRepo) ListByUserBetween(_ context.Context, userID string, from, to model.Date) ([]model.Absence, error) {
	var result []model.Absence
	for _, a := range m.absences {
		if a.UserID == userID && inRange(a.AbsenceDate, from, to) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAbsenceRepo) Create(_ context.Context, absence *model.Absence) error {
	if absence.AbsenceID == "" {
		absence.AbsenceID = fmt.Sprintf("abs-%d", len(m.absences)+1)
	}
	m.absences = append(m.absences, *absence)
	return nil
}

func (m *mockAbsenceRepo) BatchCreate(ctx context.Context, absences []model.Absence) error {
	for i := range absences {
		if err := m.Create(ctx, &absences[i]); err != nil {
			return err
		}
	}
	return nil
}

// ── Mock NotificationEventRepository ──

type mockNotificationEventRepo struct {
	mu        sync.Mutex
	events    map[string]model.NotificationEvent
	recordErr error
}

func newMockNotificationEventRepo() *mockNotificationEventRepo {
	return &mockNotificationEventRepo{events: make(map[string]model.NotificationEvent)}
}

func eventKey(userID string, date model.Date, period string) string {
	return userID + "|" + date.String() + "|" + period
}

func (m *mockNotificationEventRepo) Exists(_ context.Context, userID string, date model.Date, period string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[eventKey(userID, date, period)]
	return ok, nil
}

func (m *mockNotificationEventRepo) Record(_ context.Context, event *model.NotificationEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return false, m.recordErr
	}
	key := eventKey(event.UserID, event.EventDate, event.Period)
	if _, ok := m.events[key]; ok {
		return false, nil
	}
	m.events[key] = *event
	return true, nil
}

// ── Fake Mailer ──

type fakeMailer struct {
	mu      sync.Mutex
	sent    []*mailer.Message
	failFor map[string]bool // 收件人 → 发送失败
	err     error           // 所有发送均失败
	delay   time.Duration   // 模拟 SMTP 往返耗时
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{failFor: make(map[string]bool)}
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeMailer) Send(_ context.Context, msg *mailer.Message) error {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, to := range msg.To {
		if f.failFor[to] {
			return errors.New("smtp: 550 mailbox unavailable")
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

// ── Fake DispatchLocker ──

type fakeLocker struct {
	held     map[string]string
	claimErr error
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (f *fakeLocker) ClaimDispatch(_ context.Context, key, owner string, _ time.Duration) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if _, ok := f.held[key]; ok {
		return false, nil
	}
	f.held[key] = owner
	return true, nil
}

func (f *fakeLocker) ReleaseDispatch(_ context.Context, key, owner string) error {
	if f.held[key] == owner {
		delete(f.held, key)
		f.released = append(f.released, key)
	}
	return nil
}

// ── 测试辅助 ──

type testEnv struct {
	repo     *repository.Repository
	users    *mockUserRepo
	records  *mockTestRecordRepo
	absences *mockAbsenceRepo
	events   *mockNotificationEventRepo
}

func newTestEnv() *testEnv {
	users := newMockUserRepo()
	env := &testEnv{
		users:    users,
		records:  newMockTestRecordRepo(users),
		absences: newMockAbsenceRepo(),
		events:   newMockNotificationEventRepo(),
	}
	env.repo = &repository.Repository{
		User:              env.users,
		TestRecord:        env.records,
		Absence:           env.absences,
		NotificationEvent: env.events,
	}
	return env
}

func inRange(d, from, to model.Date) bool {
	s := d.String()
	return s >= from.String() && s <= to.String()
}

func strPtr(s string) *string { return &s }

func mustNY() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}

// employee 启用、非管理员、有经理邮箱的普通员工
func employee(id, first, last, managerEmail string) *model.User {
	return &model.User{
		UserID:       id,
		FirstName:    first,
		LastName:     last,
		Email:        first + "@example.com",
		IsActive:     true,
		ManagerEmail: strPtr(managerEmail),
	}
}
