// Package enrichment resolves auxiliary links for a newly created audit run.
// Every lookup is best-effort: absence or failure never blocks creation.
package enrichment

import (
	"context"

	"auditflow/pkg/domain"
)

// Lookup is the enrichment collaborator contract. Implementations may return
// sentinel.ErrNotFound; callers treat any error as "no enrichment".
type Lookup interface {
	SlideLink(ctx context.Context, eventRef domain.EventRef) (string, error)
	VideoLinks(ctx context.Context, eventRef domain.EventRef) ([]string, error)
	ClassGroupCode(ctx context.Context, classGroupID string) (string, error)
}

// Links is the resolved enrichment for one run. Zero values mean the lookup
// found nothing.
type Links struct {
	SlideLink      string
	VideoLinks     []string
	ClassGroupCode string
}
