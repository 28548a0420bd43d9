// Package links manages shareable attendance links: session links any
// student can use, and personal links bound to one student. Marks
// collected through a link are attributed to the link creator so they
// stay inside that teacher's data slice.
package links

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"smartattend/internal/attendance"
	"smartattend/internal/auth"
	"smartattend/internal/roster"
	"smartattend/internal/store"
)

var (
	// ErrLinkInvalid reports an unknown or expired token.
	ErrLinkInvalid = errors.New("invalid or expired attendance link")
	// ErrLinkInactive reports a deactivated link.
	ErrLinkInactive = errors.New("attendance link is no longer active")
	// ErrLinkExhausted reports a personal link past its use limit.
	ErrLinkExhausted = errors.New("attendance link has reached its use limit")
)

// SessionLink lets any known student mark themselves present while it
// is live.
type SessionLink struct {
	SessionID       string    `bson:"session_id" json:"session_id"`
	Course          string    `bson:"course" json:"course"`
	Description     string    `bson:"description" json:"description"`
	CreatedBy       string    `bson:"created_by" json:"created_by"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt       time.Time `bson:"expires_at" json:"expires_at"`
	IsActive        bool      `bson:"is_active" json:"is_active"`
	AttendanceCount int       `bson:"attendance_count" json:"attendance_count"`
}

// StudentLink lets one specific student mark themselves present.
type StudentLink struct {
	LinkID    string    `bson:"link_id" json:"link_id"`
	StudentID string    `bson:"student_id" json:"student_id"`
	CreatedBy string    `bson:"created_by" json:"created_by"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	IsActive  bool      `bson:"is_active" json:"is_active"`
	Uses      int       `bson:"uses" json:"uses"`
	MaxUses   int       `bson:"max_uses" json:"max_uses"` // 0 = unlimited
}

type Service struct {
	sessions store.Collection
	links    store.Collection
	marks    *attendance.Service
	students *roster.Service
}

func NewService(sessions, links store.Collection, marks *attendance.Service, students *roster.Service) *Service {
	return &Service{sessions: sessions, links: links, marks: marks, students: students}
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateSession creates a session link owned by the actor.
func (s *Service) CreateSession(ctx context.Context, actor *auth.Identity, description, course string, duration time.Duration) (*SessionLink, error) {
	if strings.TrimSpace(description) == "" {
		return nil, errors.New("session description is required")
	}
	if duration <= 0 {
		duration = 24 * time.Hour
	}
	now := time.Now().UTC()
	link := SessionLink{
		SessionID:   newToken(),
		Course:      course,
		Description: description,
		CreatedBy:   actor.Username,
		CreatedAt:   now,
		ExpiresAt:   now.Add(duration),
		IsActive:    true,
	}
	if err := s.sessions.InsertOne(ctx, link); err != nil {
		return nil, err
	}
	return &link, nil
}

// CreateStudentLink creates a personal link for one student.
func (s *Service) CreateStudentLink(ctx context.Context, actor *auth.Identity, studentID string, duration time.Duration, maxUses int) (*StudentLink, error) {
	if _, err := s.students.Get(ctx, studentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, attendance.ErrUnknownStudent
		}
		return nil, err
	}
	if duration <= 0 {
		duration = 168 * time.Hour
	}
	if maxUses < 0 {
		maxUses = 0
	}
	now := time.Now().UTC()
	link := StudentLink{
		LinkID:    newToken(),
		StudentID: studentID,
		CreatedBy: actor.Username,
		CreatedAt: now,
		ExpiresAt: now.Add(duration),
		IsActive:  true,
		MaxUses:   maxUses,
	}
	if err := s.links.InsertOne(ctx, link); err != nil {
		return nil, err
	}
	return &link, nil
}

// ActiveSessions lists the caller's live session links.
func (s *Service) ActiveSessions(ctx context.Context, actor *auth.Identity) ([]SessionLink, error) {
	filter := auth.Scoped(actor, store.Filter{
		"is_active":  true,
		"expires_at": store.Filter{"$gt": time.Now().UTC()},
	})
	var out []SessionLink
	if err := s.sessions.Find(ctx, filter, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveStudentLinks lists the caller's live personal links.
func (s *Service) ActiveStudentLinks(ctx context.Context, actor *auth.Identity) ([]StudentLink, error) {
	filter := auth.Scoped(actor, store.Filter{
		"is_active":  true,
		"expires_at": store.Filter{"$gt": time.Now().UTC()},
	})
	var out []StudentLink
	if err := s.links.Find(ctx, filter, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveSession validates a session token for public use.
func (s *Service) ResolveSession(ctx context.Context, token string) (*SessionLink, error) {
	var link SessionLink
	if err := s.sessions.FindOne(ctx, store.Filter{"session_id": token}, &link); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrLinkInvalid
		}
		return nil, err
	}
	if !link.ExpiresAt.After(time.Now().UTC()) {
		return nil, ErrLinkInvalid
	}
	if !link.IsActive {
		return nil, ErrLinkInactive
	}
	return &link, nil
}

// MarkViaSession marks a student present through a session link. The
// returned flag reports a name that does not match the roster; the mark
// still goes through, mirroring a teacher accepting a misspelled name.
func (s *Service) MarkViaSession(ctx context.Context, token, studentID, name string) (*attendance.Record, bool, error) {
	link, err := s.ResolveSession(ctx, token)
	if err != nil {
		return nil, false, err
	}
	student, err := s.students.Get(ctx, studentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, attendance.ErrUnknownStudent
		}
		return nil, false, err
	}
	nameMismatch := name != "" && !strings.EqualFold(strings.TrimSpace(name), student.Name)

	course := link.Course
	if course == "" {
		course = student.Course
	}
	rec, err := s.marks.Mark(ctx, nil, link.CreatedBy, student.StudentID, attendance.StatusPresent, time.Now(), course, attendance.MethodSessionLink)
	if err != nil {
		return nil, nameMismatch, err
	}
	err = s.sessions.UpdateOne(ctx, store.Filter{"session_id": link.SessionID},
		store.Update{"$inc": map[string]any{"attendance_count": 1}}, false)
	if err != nil {
		return nil, nameMismatch, err
	}
	return rec, nameMismatch, nil
}

// ResolveStudentLink validates a personal token and resolves its student.
func (s *Service) ResolveStudentLink(ctx context.Context, token string) (*StudentLink, *roster.Student, error) {
	var link StudentLink
	if err := s.links.FindOne(ctx, store.Filter{"link_id": token}, &link); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrLinkInvalid
		}
		return nil, nil, err
	}
	if !link.ExpiresAt.After(time.Now().UTC()) {
		return nil, nil, ErrLinkInvalid
	}
	if !link.IsActive {
		return nil, nil, ErrLinkInactive
	}
	if link.MaxUses > 0 && link.Uses >= link.MaxUses {
		return nil, nil, ErrLinkExhausted
	}
	student, err := s.students.Get(ctx, link.StudentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, attendance.ErrUnknownStudent
		}
		return nil, nil, err
	}
	return &link, student, nil
}

// MarkViaStudentLink marks the link's student present and counts the use.
func (s *Service) MarkViaStudentLink(ctx context.Context, token string) (*attendance.Record, error) {
	link, student, err := s.ResolveStudentLink(ctx, token)
	if err != nil {
		return nil, err
	}
	rec, err := s.marks.Mark(ctx, nil, link.CreatedBy, student.StudentID, attendance.StatusPresent, time.Now(), student.Course, attendance.MethodPersonalLink)
	if err != nil {
		return nil, err
	}
	err = s.links.UpdateOne(ctx, store.Filter{"link_id": link.LinkID},
		store.Update{"$inc": map[string]any{"uses": 1}}, false)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
