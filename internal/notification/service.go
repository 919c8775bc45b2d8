package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"auditflow/internal/identity"
	"auditflow/pkg/domain"
	"auditflow/pkg/email"
)

// Service resolves recipients and dispatches verdict notifications. Every
// path here is best-effort; the only way Dispatch surfaces a problem is
// through logs.
type Service struct {
	sender   Sender
	identity identity.Store
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(sender Sender, identityStore identity.Store, opts ...Option) (*Service, error) {
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if identityStore == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	s := &Service{sender: sender, identity: identityStore, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Outcome describes a completed audit for notification purposes.
type Outcome struct {
	ProcessCode domain.ProcessCode
	AuditType   domain.AuditType
	TeacherID   domain.TeacherID
	Verdict     domain.Verdict
	Score       float64
}

// Dispatch applies the verdict/audit-type notification matrix:
//   - pass: teacher only
//   - retrain on a first run: teacher plus every manager and admin
//   - retrain or terminate on a retraining run: managers only, as a
//     termination notice
//   - anything else: nothing
func (s *Service) Dispatch(ctx context.Context, outcome Outcome) {
	switch {
	case outcome.Verdict == domain.VerdictPass:
		s.sendToUser(ctx, string(outcome.TeacherID), TemplateAuditPassed, outcome)

	case outcome.Verdict == domain.VerdictRetrain && !outcome.AuditType.IsRetraining():
		s.sendToUser(ctx, string(outcome.TeacherID), TemplateRetrainRequired, outcome)
		s.sendToRole(ctx, domain.RoleManager, TemplateRetrainRequired, outcome)
		s.sendToRole(ctx, domain.RoleAdmin, TemplateRetrainRequired, outcome)

	case outcome.AuditType.IsRetraining() &&
		(outcome.Verdict == domain.VerdictRetrain || outcome.Verdict == domain.VerdictTerminate):
		s.sendToRole(ctx, domain.RoleManager, TemplateRetrainingFailed, outcome)
	}
}

func (s *Service) sendToUser(ctx context.Context, userID, templateCode string, outcome Outcome) {
	user, err := s.identity.FindUserByID(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "notification recipient lookup failed",
			"user_id", userID, "process_code", outcome.ProcessCode, "error", err)
		return
	}
	s.send(ctx, user, templateCode, outcome)
}

func (s *Service) sendToRole(ctx context.Context, role domain.Role, templateCode string, outcome Outcome) {
	users, err := s.identity.ListUsersByRole(ctx, role)
	if err != nil {
		s.logger.WarnContext(ctx, "notification role lookup failed",
			"role", role, "process_code", outcome.ProcessCode, "error", err)
		return
	}
	for _, user := range users {
		s.send(ctx, user, templateCode, outcome)
	}
}

func (s *Service) send(ctx context.Context, user *identity.User, templateCode string, outcome Outcome) {
	name := user.Name
	if name == "" {
		first, last := email.DeriveNameFromEmail(user.Email)
		name = first + " " + last
	}
	sent, err := s.sender.Send(ctx, Message{
		TemplateCode:   templateCode,
		RecipientEmail: user.Email,
		RecipientName:  name,
		Variables: map[string]string{
			"process_code": outcome.ProcessCode.String(),
			"teacher_id":   outcome.TeacherID.String(),
			"verdict":      outcome.Verdict.String(),
			"score":        strconv.FormatFloat(outcome.Score, 'f', 2, 64),
		},
	})
	if err != nil || !sent {
		s.logger.WarnContext(ctx, "notification send failed",
			"template", templateCode, "recipient", user.ID,
			"process_code", outcome.ProcessCode, "sent", sent, "error", err)
	}
}
