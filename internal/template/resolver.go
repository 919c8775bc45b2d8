// Package template resolves the applicable published template tree for a
// triggering event. Missing configuration is the dominant real-world failure
// mode here, so resolution errors always name the unmatched keys.
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/sentinel"
)

// Classifier resolves an event reference into classification keys. External
// collaborator; may return sentinel.ErrNotFound.
type Classifier interface {
	ResolveClassification(ctx context.Context, eventRef domain.EventRef) (*Classification, error)
}

// Store is read-only access to published template rows.
type Store interface {
	FindPublishedProcessTemplate(ctx context.Context, productKey, gradeKey, periodKey string) (*ProcessTemplate, error)
	FindProcessTemplateByCode(ctx context.Context, code string) (*ProcessTemplate, error)
	ListPublishedSteps(ctx context.Context, processTemplateCode string) ([]*StepTemplate, error)
	ListPublishedChecklists(ctx context.Context, stepTemplateCode string) ([]*ChecklistTemplate, error)
}

// Resolution is the fully expanded template tree plus the classification it
// was selected by.
type Resolution struct {
	Classification *Classification
	Process        *ProcessTemplate
	Steps          []*StepTemplate
	// ChecklistsByStep is keyed by step template code.
	ChecklistsByStep map[string][]*ChecklistTemplate
}

type Resolver struct {
	classifier Classifier
	store      Store
	cache      *Cache
	logger     *slog.Logger
}

type ResolverOption func(*Resolver)

// WithCache enables best-effort caching of resolved template codes.
func WithCache(cache *Cache) ResolverOption {
	return func(r *Resolver) { r.cache = cache }
}

func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func NewResolver(classifier Classifier, store Store, opts ...ResolverOption) (*Resolver, error) {
	if classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if store == nil {
		return nil, fmt.Errorf("template store is required")
	}
	r := &Resolver{classifier: classifier, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolve classifies the event and expands the matching published template
// tree. Returns CodeBadRequest when the event cannot be classified or no
// template is published for the resolved keys.
func (r *Resolver) Resolve(ctx context.Context, eventRef domain.EventRef) (*Resolution, error) {
	class, err := r.classifier.ResolveClassification(ctx, eventRef)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeBadRequest, "event %s cannot be classified", eventRef)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "classification lookup failed")
	}

	proc, err := r.findProcessTemplate(ctx, class)
	if err != nil {
		return nil, err
	}

	steps, err := r.store.ListPublishedSteps(ctx, proc.Code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load step templates")
	}
	items := make(map[string][]*ChecklistTemplate, len(steps))
	for _, step := range steps {
		list, err := r.store.ListPublishedChecklists(ctx, step.Code)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load checklist templates")
		}
		items[step.Code] = list
	}

	return &Resolution{
		Classification:   class,
		Process:          proc,
		Steps:            steps,
		ChecklistsByStep: items,
	}, nil
}

func (r *Resolver) findProcessTemplate(ctx context.Context, class *Classification) (*ProcessTemplate, error) {
	if code, ok := r.cachedCode(ctx, class); ok {
		proc, err := r.store.FindProcessTemplateByCode(ctx, code)
		if err == nil && proc.Published {
			return proc, nil
		}
		// Stale or unpublished cache entry; fall through to the key lookup.
	}

	proc, err := r.store.FindPublishedProcessTemplate(ctx, class.ProductKey, class.GradeKey, class.PeriodKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeBadRequest,
				"no published audit template for product=%s grade=%s period=%s",
				class.ProductKey, class.GradeKey, class.PeriodKey)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "template lookup failed")
	}
	r.cacheCode(ctx, class, proc.Code)
	return proc, nil
}

func (r *Resolver) cachedCode(ctx context.Context, class *Classification) (string, bool) {
	if r.cache == nil {
		return "", false
	}
	code, ok, err := r.cache.Get(ctx, class.ProductKey, class.GradeKey, class.PeriodKey)
	if err != nil {
		r.logger.WarnContext(ctx, "template cache read failed", "error", err)
		return "", false
	}
	return code, ok
}

func (r *Resolver) cacheCode(ctx context.Context, class *Classification, code string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, class.ProductKey, class.GradeKey, class.PeriodKey, code); err != nil {
		r.logger.WarnContext(ctx, "template cache write failed", "error", err)
	}
}
