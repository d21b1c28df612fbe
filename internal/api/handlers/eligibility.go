package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/visaflow/visaflow/internal/domain"
	"github.com/visaflow/visaflow/internal/rules"
	"github.com/visaflow/visaflow/internal/service"
	"github.com/visaflow/visaflow/internal/store"
)

type EligibilityHandler struct {
	svc     *service.EligibilityService
	results domain.ResultStore
}

func NewEligibilityHandler(svc *service.EligibilityService, results domain.ResultStore) *EligibilityHandler {
	return &EligibilityHandler{svc: svc, results: results}
}

type checkRequest struct {
	CaseID      string   `json:"case_id"`
	VisaTypeIDs []string `json:"visa_type_ids"`
}

type checkResponse struct {
	Results []*domain.EligibilityResult `json:"results"`
}

func (h *EligibilityHandler) Check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caseID, err := uuid.Parse(req.CaseID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid case_id")
		return
	}

	visaTypeIDs := make([]uuid.UUID, 0, len(req.VisaTypeIDs))
	for _, raw := range req.VisaTypeIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid visa_type_id: "+raw)
			return
		}
		visaTypeIDs = append(visaTypeIDs, id)
	}

	results, err := h.svc.CheckCase(r.Context(), caseID, visaTypeIDs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCaseIDMissing),
			errors.Is(err, service.ErrVisaTypesMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, rules.ErrRuleVersionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "eligibility check failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, checkResponse{Results: results})
}

func (h *EligibilityHandler) GetResultByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid result id")
		return
	}

	result, err := h.results.GetResultByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "result not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get result")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *EligibilityHandler) ListResultsByCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "caseID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid case id")
		return
	}

	results, err := h.results.ListResultsByCase(r.Context(), caseID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list results")
		return
	}
	if results == nil {
		results = []domain.EligibilityResult{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
