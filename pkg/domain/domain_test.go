package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
)

func TestParseStatus(t *testing.T) {
	for _, valid := range []string{"open", "assigned", "auditing", "audited"} {
		st, err := domain.ParseStatus(valid)
		assert.NoError(t, err)
		assert.Equal(t, valid, st.String())
		assert.True(t, st.IsValid())
	}

	_, err := domain.ParseStatus("paused")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestParseAuditType(t *testing.T) {
	for _, valid := range []string{"standard", "onboarding", "retraining"} {
		at, err := domain.ParseAuditType(valid)
		assert.NoError(t, err)
		assert.Equal(t, valid, at.String())
	}

	_, err := domain.ParseAuditType("spot_check")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	assert.True(t, domain.AuditTypeRetraining.IsRetraining())
	assert.False(t, domain.AuditTypeStandard.IsRetraining())
	assert.False(t, domain.AuditTypeOnboarding.IsRetraining())
}

func TestAuditorIDIsZero(t *testing.T) {
	assert.True(t, domain.AuditorID("").IsZero())
	assert.False(t, domain.AuditorID("aud-1").IsZero())
}
