package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/certeon/certexam-backend/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type sessionFixture struct {
	svc      *SessionService
	sessions *fakeSessionStore
	attempts *fakeAttemptStore
	certs    *fakeCertificateStore
	payments *fakePaymentStore
	renderer *noopRenderer
	course   *model.Course
	key      map[string]string
}

// newSessionFixture wires the full service graph over the in-memory fakes.
// The Redis client points nowhere; render enqueueing is tolerant of that.
func newSessionFixture(course *model.Course, key map[string]string) *sessionFixture {
	attempts := newFakeAttemptStore()
	courses := newFakeCourseStore(course)
	sessions := newFakeSessionStore(attempts, courses)
	certs := newFakeCertificateStore()
	payments := newFakePaymentStore()
	users := &fakeUserStore{users: map[int]*model.User{1: {ID: 1, Name: "Test Candidate", Email: "c@example.com"}}}
	renderer := &noopRenderer{}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	log := zerolog.Nop()

	cfg := testConfig()
	eligibility := NewEligibilityService(cfg, courses, certs, payments)
	scoring := NewScoringService(attempts, &staticKeySource{key: key}, log)
	issuer := NewCertificateService(certs, users, courses, renderer, rdb, log)
	svc := NewSessionService(cfg, sessions, attempts, certs, courses, eligibility, scoring, issuer, log)

	return &sessionFixture{
		svc:      svc,
		sessions: sessions,
		attempts: attempts,
		certs:    certs,
		payments: payments,
		renderer: renderer,
		course:   course,
		key:      key,
	}
}

// tenQuestionKey builds a ten question answer key, all "A".
func tenQuestionKey() map[string]string {
	key := make(map[string]string)
	for i := 0; i < 10; i++ {
		key[uuid.New().String()] = "A"
	}
	return key
}

// answerFromKey records one answer per key entry, the first `correct` of
// them right and the rest wrong.
func (f *sessionFixture) answerFromKey(t *testing.T, attemptID uuid.UUID, correct int) {
	t.Helper()
	i := 0
	for qid, want := range f.key {
		selected := want
		if i >= correct {
			selected = "Z"
		}
		id, err := uuid.Parse(qid)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.attempts.UpsertAnswer(context.Background(), attemptID, id, 1, selected, 10); err != nil {
			t.Fatal(err)
		}
		i++
	}
}

func passableCourse() *model.Course {
	return &model.Course{
		ID:                 uuid.New(),
		Title:              "Go Backend Fundamentals",
		PassingScore:       70,
		ExamDuration:       30,
		CertificateEnabled: true,
	}
}

func TestCreateSessionConvergesOnOneActive(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	first, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Status != model.SessionStatusPending {
		t.Fatalf("status = %s, want PENDING", first.Status)
	}

	second, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("double create spawned a second session: %s vs %s", second.ID, first.ID)
	}
}

func TestCreateSessionRejectsCertifiedCandidate(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	if _, err := f.certs.InsertIfAbsent(ctx, &model.Certificate{UserID: 1, CourseID: f.course.ID}); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Create(ctx, 1, f.course.ID)
	var notEligible *NotEligibleError
	if !errors.As(err, &notEligible) {
		t.Fatalf("err = %v, want NotEligibleError", err)
	}
	if notEligible.Reason != ReasonAlreadyCertified {
		t.Errorf("reason = %s, want ALREADY_CERTIFIED", notEligible.Reason)
	}
}

func TestStartSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	session, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}

	started, attempt, err := f.svc.Start(ctx, session.ID, 1, "fp-original")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != model.SessionStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", started.Status)
	}
	if started.BrowserFingerprint != "fp-original" {
		t.Fatalf("fingerprint = %q, want fp-original", started.BrowserFingerprint)
	}

	again, attempt2, err := f.svc.Start(ctx, session.ID, 1, "fp-other")
	if err != nil {
		t.Fatalf("re-Start: %v", err)
	}
	if again.BrowserFingerprint != "fp-original" {
		t.Errorf("re-start replaced the bound fingerprint: %q", again.BrowserFingerprint)
	}
	if attempt2.ID != attempt.ID {
		t.Errorf("re-start created a second attempt")
	}
}

func TestStartRejectsForeignSession(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	session, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.Start(ctx, session.ID, 2, "fp"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}
	if _, _, err := f.svc.Start(ctx, uuid.New(), 1, "fp"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("unknown session err = %v, want ErrInvalidSession", err)
	}
}

func TestCompleteScoresAndIssuesCertificate(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	session, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}
	_, attempt, err := f.svc.Start(ctx, session.ID, 1, "fp")
	if err != nil {
		t.Fatal(err)
	}
	f.answerFromKey(t, attempt.ID, 8)

	result, err := f.svc.Complete(ctx, session.ID, model.ReasonUserSubmit)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Session.Status != model.SessionStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", result.Session.Status)
	}
	if result.Attempt == nil || !result.Attempt.Scored() {
		t.Fatal("attempt not scored")
	}
	if *result.Attempt.Score != 80 || *result.Attempt.Grade != "B" || !*result.Attempt.Passed {
		t.Fatalf("outcome = %v/%v/%v, want 80/B/passed",
			*result.Attempt.Score, *result.Attempt.Grade, *result.Attempt.Passed)
	}
	if result.Certificate == nil {
		t.Fatal("no certificate issued for passing attempt")
	}
	if result.Certificate.Score != 80 || result.Certificate.Grade != "B" {
		t.Errorf("certificate outcome = %v/%s", result.Certificate.Score, result.Certificate.Grade)
	}

	// A retried complete returns the settled outcome and mints nothing new.
	again, err := f.svc.Complete(ctx, session.ID, model.ReasonUserSubmit)
	if err != nil {
		t.Fatalf("re-Complete: %v", err)
	}
	if again.Certificate == nil || again.Certificate.ID != result.Certificate.ID {
		t.Error("retried complete minted a different certificate")
	}
	if len(f.certs.certs) != 1 {
		t.Errorf("certificate rows = %d, want 1", len(f.certs.certs))
	}
}

func TestCompleteFailingAttemptIssuesNothing(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	session, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}
	_, attempt, err := f.svc.Start(ctx, session.ID, 1, "fp")
	if err != nil {
		t.Fatal(err)
	}
	f.answerFromKey(t, attempt.ID, 5)

	result, err := f.svc.Complete(ctx, session.ID, model.ReasonUserSubmit)
	if err != nil {
		t.Fatal(err)
	}
	if *result.Attempt.Score != 50 || *result.Attempt.Passed {
		t.Fatalf("outcome = %v passed=%v, want 50/failed", *result.Attempt.Score, *result.Attempt.Passed)
	}
	if result.Certificate != nil {
		t.Error("certificate issued for failing attempt")
	}
	if len(f.certs.certs) != 0 {
		t.Errorf("certificate rows = %d, want 0", len(f.certs.certs))
	}
}

// A course whose question set was emptied after sessions opened must still
// complete to a scored result (zero out of zero), not strand the session
// in COMPLETED-but-unscored. Uses the real ExamService as the key source so
// the empty-key path is exercised end to end, not just in ComputeOutcome.
func TestCompleteZeroQuestionCourseScoresZero(t *testing.T) {
	ctx := context.Background()
	course := passableCourse()

	attempts := newFakeAttemptStore()
	courses := newFakeCourseStore(course)
	sessions := newFakeSessionStore(attempts, courses)
	certs := newFakeCertificateStore()
	questions := newFakeQuestionStore()
	users := &fakeUserStore{users: map[int]*model.User{1: {ID: 1, Name: "Test Candidate", Email: "c@example.com"}}}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	log := zerolog.Nop()

	cfg := testConfig()
	eligibility := NewEligibilityService(cfg, courses, certs, newFakePaymentStore())
	exams := NewExamService(courses, questions, rdb, log)
	scoring := NewScoringService(attempts, exams, log)
	issuer := NewCertificateService(certs, users, courses, &noopRenderer{}, rdb, log)
	svc := NewSessionService(cfg, sessions, attempts, certs, courses, eligibility, scoring, issuer, log)

	session, err := svc.Create(ctx, 1, course.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.Start(ctx, session.ID, 1, "fp"); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Complete(ctx, session.ID, model.ReasonUserSubmit)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if result.Session.Status != model.SessionStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", result.Session.Status)
	}
	if result.Attempt == nil || !result.Attempt.Scored() {
		t.Fatal("attempt not scored")
	}
	if *result.Attempt.Score != 0 || *result.Attempt.Grade != "F" || *result.Attempt.Passed {
		t.Fatalf("outcome = %v/%v/%v, want 0/F/failed",
			*result.Attempt.Score, *result.Attempt.Grade, *result.Attempt.Passed)
	}
	if *result.Attempt.TotalCount != 0 {
		t.Errorf("total = %d, want 0", *result.Attempt.TotalCount)
	}
	if result.Certificate != nil {
		t.Error("certificate issued for zero-question sitting")
	}

	settled, err := svc.Results(ctx, session.ID, 1)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if *settled.Attempt.Score != 0 {
		t.Errorf("results score = %v, want 0", *settled.Attempt.Score)
	}
}

func TestTerminatedSessionIsNeverScored(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	session, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}
	_, attempt, err := f.svc.Start(ctx, session.ID, 1, "fp")
	if err != nil {
		t.Fatal(err)
	}
	f.answerFromKey(t, attempt.ID, 10) // perfect answers, still forfeited

	result, err := f.svc.Complete(ctx, session.ID, model.ReasonAdminTerminated)
	if err != nil {
		t.Fatal(err)
	}
	if result.Session.Status != model.SessionStatusTerminated {
		t.Fatalf("status = %s, want TERMINATED", result.Session.Status)
	}
	if result.Attempt == nil {
		t.Fatal("attempt missing from result")
	}
	if result.Attempt.Scored() {
		t.Error("terminated attempt was scored")
	}
	if result.Certificate != nil {
		t.Error("certificate issued for terminated session")
	}

	closed, err := f.attempts.GetBySession(ctx, session.ID)
	if err != nil {
		t.Fatal(err)
	}
	if closed.CompletedAt == nil {
		t.Error("terminated attempt left open")
	}
}

func TestCompleteRejectsUnknownReason(t *testing.T) {
	f := newSessionFixture(passableCourse(), tenQuestionKey())
	if _, err := f.svc.Complete(context.Background(), uuid.New(), model.CompletionReason("WHATEVER")); !errors.Is(err, ErrInvalidReason) {
		t.Fatalf("err = %v, want ErrInvalidReason", err)
	}
}

func TestResultsRepairsInterruptedFinalization(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	session, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}
	_, attempt, err := f.svc.Start(ctx, session.ID, 1, "fp")
	if err != nil {
		t.Fatal(err)
	}
	f.answerFromKey(t, attempt.ID, 9)

	// Flip the row terminal without running finalization, as if the server
	// crashed between the transition and scoring.
	if _, _, err := f.sessions.CompleteCAS(ctx, session.ID, model.SessionStatusCompleted, model.ReasonUserSubmit); err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.Results(ctx, session.ID, 1)
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if result.Attempt == nil || !result.Attempt.Scored() {
		t.Fatal("Results did not repair the pending scoring")
	}
	if *result.Attempt.Score != 90 || *result.Attempt.Grade != "A" {
		t.Fatalf("outcome = %v/%v, want 90/A", *result.Attempt.Score, *result.Attempt.Grade)
	}
	if result.Certificate == nil {
		t.Error("certificate missing after repair")
	}
}

func TestResultsRejectsRunningSession(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	session, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Results(ctx, session.ID, 1); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("err = %v, want ErrInvalidSession for non-terminal session", err)
	}
}

func TestSweepExpiredCompletesAndScores(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	session, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}
	_, attempt, err := f.svc.Start(ctx, session.ID, 1, "fp")
	if err != nil {
		t.Fatal(err)
	}
	f.answerFromKey(t, attempt.ID, 7)

	// Backdate the start past the 30 minute allowance.
	f.sessions.mu.Lock()
	past := time.Now().Add(-time.Duration(f.course.ExamDuration)*time.Minute - 5*time.Minute)
	f.sessions.sessions[session.ID].StartedAt = &past
	f.sessions.mu.Unlock()

	swept, err := f.svc.SweepExpired(ctx, 30*time.Second)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	result, err := f.svc.Results(ctx, session.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if result.Session.Status != model.SessionStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", result.Session.Status)
	}
	if result.Session.Reason == nil || *result.Session.Reason != model.ReasonTimeExpired {
		t.Errorf("reason = %v, want TIME_EXPIRED", result.Session.Reason)
	}
	if result.Attempt == nil || !result.Attempt.Scored() || *result.Attempt.Score != 70 {
		t.Error("expired sitting was not scored from its partial answers")
	}
	if result.Certificate == nil {
		t.Error("passing expired sitting did not certify")
	}
}

func TestSweepExpiredLeavesRunningSessionsAlone(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(passableCourse(), tenQuestionKey())

	session, err := f.svc.Create(ctx, 1, f.course.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.svc.Start(ctx, session.ID, 1, "fp"); err != nil {
		t.Fatal(err)
	}

	swept, err := f.svc.SweepExpired(ctx, 30*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if swept != 0 {
		t.Fatalf("swept = %d, want 0 for a session within its allowance", swept)
	}
}
