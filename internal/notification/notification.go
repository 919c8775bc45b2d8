// Package notification fans out verdict-driven messages after an audit
// completes. Send failures are logged and swallowed: a completed audit is
// already committed and a mail outage must never roll it back.
package notification

import "context"

// Message is the send contract of the external rendering/delivery service.
// Template rendering happens on the collaborator side; this engine only
// supplies the template code and its variables.
type Message struct {
	TemplateCode   string            `json:"template_code"`
	RecipientEmail string            `json:"recipient_email"`
	RecipientName  string            `json:"recipient_name"`
	Variables      map[string]string `json:"variables,omitempty"`
}

// Sender delivers one message. The boolean mirrors the collaborator's
// sent/not-sent response; errors are transport failures.
type Sender interface {
	Send(ctx context.Context, msg Message) (bool, error)
}

// Template codes understood by the rendering collaborator.
const (
	TemplateAuditPassed      = "audit_passed"
	TemplateRetrainRequired  = "audit_retrain_required"
	TemplateRetrainingFailed = "retraining_failed"
)
