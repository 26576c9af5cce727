package web

import (
	"net/http"
	"strconv"

	"github.com/vbonduro/sitecheck/internal/inspection"
)

func (s *Server) handleAddEvaluation(w http.ResponseWriter, r *http.Request) {
	var in inspection.EvaluationInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badRequest(w, err.Error())
		return
	}

	res, err := s.service.AddEvaluation(r.Context(), r.PathValue("id"), r.PathValue("itemID"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Applied && !res.Replaced {
		status = http.StatusCreated
	}
	s.writeJSON(w, status, res)
}

func (s *Server) handleRemoveEvaluation(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.badRequest(w, "invalid evaluation index")
		return
	}

	removed, err := s.service.RemoveEvaluation(r.Context(), r.PathValue("id"), r.PathValue("itemID"), index)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appliedResponse{Applied: removed})
}
