// Package handler is the thin HTTP layer over the audit services. It
// decodes, delegates, and writes; business rules live in the services.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"auditflow/internal/audit/service/assignment"
	"auditflow/internal/audit/service/cascade"
	"auditflow/internal/audit/service/instantiate"
	"auditflow/internal/audit/service/retraining"
	"auditflow/pkg/domain"
	dErrors "auditflow/pkg/domain-errors"
	"auditflow/pkg/platform/httputil"
)

type Handler struct {
	instantiate *instantiate.Service
	assignment  *assignment.Service
	cascade     *cascade.Service
	retraining  *retraining.Service
	logger      *slog.Logger
}

func New(instantiateSvc *instantiate.Service, assignmentSvc *assignment.Service, cascadeSvc *cascade.Service, retrainingSvc *retraining.Service, logger *slog.Logger) *Handler {
	return &Handler{
		instantiate: instantiateSvc,
		assignment:  assignmentSvc,
		cascade:     cascadeSvc,
		retraining:  retrainingSvc,
		logger:      logger,
	}
}

// Register mounts the engine endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/audits", h.handleCreateAudit)
	r.Post("/audits/onboarding", h.handleCreateOnboardAudit)
	r.Post("/audits/assignments/random", h.handleRandomAssign)
	r.Post("/audits/{code}/auditor", h.handleAssign)
	r.Delete("/audits/{code}/auditor", h.handleUnassign)
	r.Post("/audits/{code}/complete", h.handleCompleteAudit)
	r.Post("/audits/{code}/retraining", h.handleCreateRetraining)
	r.Post("/steps/{code}/start", h.handleStartStep)
	r.Post("/steps/{code}/complete", h.handleCompleteStep)
	r.Post("/checklists/scores", h.handleScoreChecklists)
	r.Get("/auditors/{id}/performance", h.handleGetPerformance)
}

func (h *Handler) handleCreateAudit(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[createAuditRequest](w, r)
	if !ok {
		return
	}
	auditType, err := domain.ParseAuditType(req.AuditType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.instantiate.CreateAuditProcess(r.Context(),
		domain.EventRef(req.EventRef), auditType, domain.TeacherID(req.TeacherID))
	if err != nil {
		h.writeError(w, r, "create audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCreateOnboardAudit(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[createOnboardRequest](w, r)
	if !ok {
		return
	}
	result, err := h.instantiate.CreateOnboardAudit(r.Context(),
		domain.EventRef(req.EventRef), domain.TeacherID(req.TeacherID), domain.AuditorID(req.AuditorID))
	if err != nil {
		h.writeError(w, r, "create onboarding audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[assignRequest](w, r)
	if !ok {
		return
	}
	code := domain.ProcessCode(chi.URLParam(r, "code"))
	if err := h.assignment.AssignAuditor(r.Context(), code, domain.AuditorID(req.AuditorID)); err != nil {
		h.writeError(w, r, "assign auditor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"process_code": code.String()})
}

func (h *Handler) handleUnassign(w http.ResponseWriter, r *http.Request) {
	code := domain.ProcessCode(chi.URLParam(r, "code"))
	if err := h.assignment.UnassignAuditor(r.Context(), code); err != nil {
		h.writeError(w, r, "unassign auditor", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"process_code": code.String()})
}

func (h *Handler) handleRandomAssign(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[randomAssignRequest](w, r)
	if !ok {
		return
	}
	if len(req.ProcessCodes) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "process_codes must not be empty"))
		return
	}
	result, err := h.assignment.RandomAssign(r.Context(), req.codes())
	if err != nil {
		h.writeError(w, r, "random assign", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetPerformance(w http.ResponseWriter, r *http.Request) {
	auditorID := domain.AuditorID(chi.URLParam(r, "id"))
	perf, err := h.assignment.GetPerformance(r.Context(), auditorID)
	if err != nil {
		h.writeError(w, r, "get performance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, perf)
}

func (h *Handler) handleStartStep(w http.ResponseWriter, r *http.Request) {
	code := domain.StepCode(chi.URLParam(r, "code"))
	if err := h.cascade.StartStep(r.Context(), code); err != nil {
		h.writeError(w, r, "start step", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"step_code": code.String()})
}

func (h *Handler) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	code := domain.StepCode(chi.URLParam(r, "code"))
	if err := h.cascade.CompleteStep(r.Context(), code); err != nil {
		h.writeError(w, r, "complete step", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"step_code": code.String()})
}

func (h *Handler) handleScoreChecklists(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[scoreBatchRequest](w, r)
	if !ok {
		return
	}
	if err := h.cascade.ScoreChecklists(r.Context(), req.updates()); err != nil {
		h.writeError(w, r, "score checklists", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"updated": len(req.Scores)})
}

func (h *Handler) handleCompleteAudit(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[completeAuditRequest](w, r)
	if !ok {
		return
	}
	code := domain.ProcessCode(chi.URLParam(r, "code"))
	batch := scoreBatchRequest{Scores: req.Scores}
	result, err := h.cascade.CompleteAudit(r.Context(), code, batch.updates())
	if err != nil {
		h.writeError(w, r, "complete audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCreateRetraining(w http.ResponseWriter, r *http.Request) {
	code := domain.ProcessCode(chi.URLParam(r, "code"))
	result, err := h.retraining.CreateRetrainingAudit(r.Context(), code)
	if err != nil {
		h.writeError(w, r, "create retraining audit", err)
		return
	}
	status := http.StatusCreated
	if result.AlreadyExists {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), op+" failed", "error", err)
	}
	httputil.WriteError(w, err)
}
