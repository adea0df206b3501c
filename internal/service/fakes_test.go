package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/certeon/certexam-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// In-memory store fakes for the service tests. They mirror the guarantees
// the pgx repositories get from the database: the partial unique indexes,
// the compare-and-set completion, write-once scoring and the serialized
// violation append.

type fakeSessionStore struct {
	mu         sync.Mutex
	sessions   map[uuid.UUID]*model.ExamSession
	violations map[uuid.UUID][]model.Violation
	attempts   *fakeAttemptStore
	courses    *fakeCourseStore
}

func newFakeSessionStore(attempts *fakeAttemptStore, courses *fakeCourseStore) *fakeSessionStore {
	return &fakeSessionStore{
		sessions:   make(map[uuid.UUID]*model.ExamSession),
		violations: make(map[uuid.UUID][]model.Violation),
		attempts:   attempts,
		courses:    courses,
	}
}

func (f *fakeSessionStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) GetActive(_ context.Context, userID int, courseID uuid.UUID) (*model.ExamSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s := f.activeLocked(userID, courseID); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeSessionStore) activeLocked(userID int, courseID uuid.UUID) *model.ExamSession {
	for _, s := range f.sessions {
		if s.UserID == userID && s.CourseID == courseID && !s.Status.Terminal() {
			return s
		}
	}
	return nil
}

func (f *fakeSessionStore) CreateIfAbsent(_ context.Context, s *model.ExamSession) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing := f.activeLocked(s.UserID, s.CourseID); existing != nil {
		*s = *existing
		return false, nil
	}
	s.ID = uuid.New()
	s.Status = model.SessionStatusPending
	s.CreatedAt = time.Now()
	cp := *s
	f.sessions[s.ID] = &cp
	return true, nil
}

func (f *fakeSessionStore) Start(_ context.Context, sessionID uuid.UUID, userID int, fingerprint string) (*model.ExamSession, *model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || s.UserID != userID || s.Status.Terminal() {
		return nil, nil, repository.ErrSessionNotActive
	}
	s.Status = model.SessionStatusInProgress
	if s.BrowserFingerprint == "" {
		s.BrowserFingerprint = fingerprint
	}
	if s.StartedAt == nil {
		now := time.Now()
		s.StartedAt = &now
	}
	a := f.attempts.ensureForSession(s)
	s.AttemptID = &a.ID
	sc, ac := *s, *a
	return &sc, &ac, nil
}

func (f *fakeSessionStore) CompleteCAS(_ context.Context, sessionID uuid.UUID, status model.SessionStatus, reason model.CompletionReason) (*model.ExamSession, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, false, pgx.ErrNoRows
	}
	if s.Status.Terminal() {
		cp := *s
		return &cp, false, nil
	}
	now := time.Now()
	s.Status = status
	s.Reason = &reason
	s.FinishedAt = &now
	cp := *s
	return &cp, true, nil
}

func (f *fakeSessionStore) AppendViolation(_ context.Context, sessionID uuid.UUID, userID int, v *model.Violation, limit int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return 0, false, repository.ErrSessionNotActive
	}
	if s.UserID != userID || s.Status != model.SessionStatusInProgress {
		return 0, false, repository.ErrSessionNotActive
	}

	v.ID = uuid.New()
	v.SessionID = sessionID
	v.Seq = len(f.violations[sessionID]) + 1
	v.OccurredAt = time.Now()
	f.violations[sessionID] = append(f.violations[sessionID], *v)

	count := 0
	for _, rec := range f.violations[sessionID] {
		if !rec.Soft {
			count++
		}
	}

	terminated := false
	if !v.Soft && count >= limit && s.Status == model.SessionStatusInProgress {
		reason := model.ReasonViolationLimit
		now := time.Now()
		s.Status = model.SessionStatusTerminated
		s.Reason = &reason
		s.FinishedAt = &now
		terminated = true
	}
	return count, terminated, nil
}

func (f *fakeSessionStore) ListViolations(_ context.Context, sessionID uuid.UUID) ([]model.Violation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Violation, len(f.violations[sessionID]))
	copy(out, f.violations[sessionID])
	return out, nil
}

func (f *fakeSessionStore) ListOverdue(_ context.Context, now time.Time, grace time.Duration) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, s := range f.sessions {
		if s.Status != model.SessionStatusInProgress || s.StartedAt == nil {
			continue
		}
		course, ok := f.courses.byID[s.CourseID]
		if !ok {
			continue
		}
		deadline := s.StartedAt.Add(time.Duration(course.ExamDuration)*time.Minute + grace)
		if deadline.Before(now) {
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (f *fakeSessionStore) ListByCourse(_ context.Context, courseID uuid.UUID, page, perPage int) ([]repository.CourseResult, int64, error) {
	return nil, 0, nil
}

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.ExamAttempt
	answers  map[uuid.UUID][]model.Answer
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: make(map[uuid.UUID]*model.ExamAttempt),
		answers:  make(map[uuid.UUID][]model.Answer),
	}
}

func (f *fakeAttemptStore) ensureForSession(s *model.ExamSession) *model.ExamAttempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.SessionID == s.ID {
			return a
		}
	}
	a := &model.ExamAttempt{
		ID:        uuid.New(),
		SessionID: s.ID,
		UserID:    s.UserID,
		CourseID:  s.CourseID,
		StartedAt: *s.StartedAt,
	}
	f.attempts[a.ID] = a
	return a
}

func (f *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttemptStore) GetBySession(_ context.Context, sessionID uuid.UUID) (*model.ExamAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.SessionID == sessionID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeAttemptStore) UpsertAnswer(_ context.Context, attemptID, questionID uuid.UUID, userID int, selected string, timeSpent int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.attempts[attemptID]; !ok {
		return repository.ErrAttemptNotActive
	}
	for i, a := range f.answers[attemptID] {
		if a.QuestionID == questionID {
			f.answers[attemptID][i].Selected = selected
			f.answers[attemptID][i].TimeSpent = timeSpent
			f.answers[attemptID][i].UpdatedAt = time.Now()
			return nil
		}
	}
	f.answers[attemptID] = append(f.answers[attemptID], model.Answer{
		AttemptID:  attemptID,
		QuestionID: questionID,
		Selected:   selected,
		TimeSpent:  timeSpent,
		UpdatedAt:  time.Now(),
	})
	return nil
}

func (f *fakeAttemptStore) ListAnswers(_ context.Context, attemptID uuid.UUID) ([]model.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Answer, len(f.answers[attemptID]))
	copy(out, f.answers[attemptID])
	return out, nil
}

func (f *fakeAttemptStore) FinalizeScored(_ context.Context, attemptID uuid.UUID, outcome model.AttemptOutcome, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok || a.Score != nil {
		return nil
	}
	o := outcome
	a.Score = &o.Score
	a.Passed = &o.Passed
	a.Grade = &o.Grade
	a.CorrectCount = &o.CorrectCount
	a.TotalCount = &o.TotalCount
	if a.CompletedAt == nil {
		a.CompletedAt = &completedAt
	}
	return nil
}

func (f *fakeAttemptStore) FinalizeUnscored(_ context.Context, attemptID uuid.UUID, completedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[attemptID]
	if !ok || a.CompletedAt != nil {
		return nil
	}
	a.CompletedAt = &completedAt
	return nil
}

func (f *fakeAttemptStore) MarkCorrectness(_ context.Context, attemptID uuid.UUID, questionIDs []uuid.UUID, correct []bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, qid := range questionIDs {
		for j, a := range f.answers[attemptID] {
			if a.QuestionID == qid {
				v := correct[i]
				f.answers[attemptID][j].Correct = &v
			}
		}
	}
	return nil
}

type fakeCertificateStore struct {
	mu    sync.Mutex
	certs map[uuid.UUID]*model.Certificate
}

func newFakeCertificateStore() *fakeCertificateStore {
	return &fakeCertificateStore{certs: make(map[uuid.UUID]*model.Certificate)}
}

func (f *fakeCertificateStore) GetByID(_ context.Context, id uuid.UUID) (*model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.certs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCertificateStore) GetActive(_ context.Context, userID int, courseID uuid.UUID) (*model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.certs {
		if c.UserID == userID && c.CourseID == courseID && !c.Revoked {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeCertificateStore) GetByVerificationCode(_ context.Context, code string) (*model.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.certs {
		if c.VerificationCode == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeCertificateStore) InsertIfAbsent(_ context.Context, c *model.Certificate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.certs {
		if existing.UserID == c.UserID && existing.CourseID == c.CourseID && !existing.Revoked {
			*c = *existing
			return false, nil
		}
	}
	c.ID = uuid.New()
	c.IssuedAt = time.Now()
	cp := *c
	f.certs[c.ID] = &cp
	return true, nil
}

func (f *fakeCertificateStore) SetPDFPath(_ context.Context, id uuid.UUID, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.certs[id]; ok && c.PDFPath == "" {
		c.PDFPath = path
	}
	return nil
}

func (f *fakeCertificateStore) Revoke(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.certs[id]; ok {
		c.Revoked = true
	}
	return nil
}

type fakeCourseStore struct {
	byID map[uuid.UUID]*model.Course
}

func newFakeCourseStore(courses ...*model.Course) *fakeCourseStore {
	f := &fakeCourseStore{byID: make(map[uuid.UUID]*model.Course)}
	for _, c := range courses {
		f.byID[c.ID] = c
	}
	return f
}

func (f *fakeCourseStore) GetByID(_ context.Context, id uuid.UUID) (*model.Course, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCourseStore) ListCertifiable(_ context.Context) ([]model.Course, error) {
	var out []model.Course
	for _, c := range f.byID {
		if c.CertificateEnabled {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeQuestionStore struct {
	active map[uuid.UUID][]model.QuestionForCandidate
	keys   map[uuid.UUID]map[string]string
}

func newFakeQuestionStore() *fakeQuestionStore {
	return &fakeQuestionStore{
		active: make(map[uuid.UUID][]model.QuestionForCandidate),
		keys:   make(map[uuid.UUID]map[string]string),
	}
}

func (f *fakeQuestionStore) ListActive(_ context.Context, courseID uuid.UUID) ([]model.QuestionForCandidate, error) {
	return f.active[courseID], nil
}

func (f *fakeQuestionStore) AnswerKey(_ context.Context, courseID uuid.UUID) (map[string]string, error) {
	key := make(map[string]string, len(f.keys[courseID]))
	for k, v := range f.keys[courseID] {
		key[k] = v
	}
	return key, nil
}

type fakePaymentStore struct {
	mu   sync.Mutex
	paid map[string]bool
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{paid: make(map[string]bool)}
}

func paymentKey(userID int, courseID uuid.UUID) string {
	return fmt.Sprintf("%d/%s", userID, courseID)
}

func (f *fakePaymentStore) HasCompleted(_ context.Context, userID int, courseID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paid[paymentKey(userID, courseID)], nil
}

func (f *fakePaymentStore) RecordCompleted(_ context.Context, userID int, courseID uuid.UUID, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid[paymentKey(userID, courseID)] = true
	return nil
}

type fakeApplicationStore struct {
	mu   sync.Mutex
	apps map[uuid.UUID]*model.Application
}

func newFakeApplicationStore() *fakeApplicationStore {
	return &fakeApplicationStore{apps: make(map[uuid.UUID]*model.Application)}
}

func (f *fakeApplicationStore) GetByID(_ context.Context, id uuid.UUID) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

func (f *fakeApplicationStore) CreateIfAbsent(_ context.Context, a *model.Application) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.apps {
		if existing.UserID == a.UserID && existing.CourseID == a.CourseID && existing.Status != model.ApplicationStatusCancelled {
			*a = *existing
			return false, nil
		}
	}
	a.ID = uuid.New()
	a.Status = model.ApplicationStatusApplied
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	f.apps[a.ID] = &cp
	return true, nil
}

func (f *fakeApplicationStore) ListByUser(_ context.Context, userID int) ([]model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Application
	for _, a := range f.apps {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeApplicationStore) ConfirmPayment(_ context.Context, id uuid.UUID) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok || a.Status != model.ApplicationStatusApplied {
		return nil, pgx.ErrNoRows
	}
	a.Status = model.ApplicationStatusPaymentConfirmed
	a.PaymentPaid = true
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (f *fakeApplicationStore) Schedule(_ context.Context, id uuid.UUID, userID int, at time.Time) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok || a.UserID != userID {
		return nil, pgx.ErrNoRows
	}
	if a.Status != model.ApplicationStatusPaymentConfirmed && a.Status != model.ApplicationStatusScheduled {
		return nil, pgx.ErrNoRows
	}
	a.Status = model.ApplicationStatusScheduled
	a.ScheduledAt = &at
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

type fakeUserStore struct {
	users  map[int]*model.User
	admins map[string]*model.Admin
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserStore) GetByID(_ context.Context, id int) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetAdminByEmail(_ context.Context, email string) (*model.Admin, error) {
	a, ok := f.admins[email]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *a
	return &cp, nil
}

// staticKeySource serves a fixed answer key, standing in for the Redis
// backed ExamService in scoring tests.
type staticKeySource struct {
	key map[string]string
}

func (s *staticKeySource) AnswerKey(_ context.Context, _ uuid.UUID) (map[string]string, error) {
	return s.key, nil
}

// noopRenderer records render calls without touching the filesystem.
type noopRenderer struct {
	mu    sync.Mutex
	calls int
}

func (r *noopRenderer) Render(cert *model.Certificate, _ *model.User, _ *model.Course) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return "/tmp/certificate-" + cert.ID.String() + ".pdf", nil
}
