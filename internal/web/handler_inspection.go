package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/vbonduro/sitecheck/internal/checklist"
	"github.com/vbonduro/sitecheck/internal/domain"
)

type checklistResponse struct {
	Categories []checklist.Category `json:"categories"`
	Groups     []checklist.Group    `json:"groups"`
	Rules      checklist.Rules      `json:"rules"`
	ItemCount  int                  `json:"itemCount"`
}

func (s *Server) handleChecklist(w http.ResponseWriter, r *http.Request) {
	c := s.service.Catalog()
	s.writeJSON(w, http.StatusOK, checklistResponse{
		Categories: c.Categories(),
		Groups:     c.Groups(),
		Rules:      c.Rules(),
		ItemCount:  c.ItemCount(),
	})
}

type propertiesResponse struct {
	Properties []domain.InspectionSummary `json:"properties"`
}

func (s *Server) handleListProperties(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.Properties(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, propertiesResponse{Properties: list})
}

func (s *Server) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	agg, err := s.service.Inspection(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, agg)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetCompletion(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.Completion(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	propertyID := r.PathValue("id")
	var buf bytes.Buffer
	if err := s.service.WriteReport(r.Context(), propertyID, &buf); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "inspection-"+propertyID+".xlsx"))
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Error("write report failed", "property_id", propertyID, "error", err)
	}
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.ItemState(r.Context(), r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}
