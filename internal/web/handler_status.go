package web

import (
	"net/http"

	"github.com/vbonduro/sitecheck/internal/domain"
)

// surveyRequest sets a survey toggle. Finalize requires a reason when the
// survey was not conducted.
type surveyRequest struct {
	Conducted          *bool  `json:"conducted"`
	NotConductedReason string `json:"notConductedReason"`
	Finalize           bool   `json:"finalize"`
}

func (s *Server) decodeSurvey(w http.ResponseWriter, r *http.Request) (domain.SurveyStatus, bool, bool) {
	var req surveyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return domain.SurveyStatus{}, false, false
	}
	if req.Conducted == nil {
		s.badRequest(w, "conducted is required")
		return domain.SurveyStatus{}, false, false
	}
	return domain.SurveyStatus{Conducted: *req.Conducted, NotConductedReason: req.NotConductedReason}, req.Finalize, true
}

func (s *Server) handleSetItemSurvey(w http.ResponseWriter, r *http.Request) {
	st, finalize, ok := s.decodeSurvey(w, r)
	if !ok {
		return
	}
	applied, err := s.service.SetItemSurveyStatus(r.Context(), r.PathValue("id"), r.PathValue("itemID"), st, finalize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appliedResponse{Applied: applied})
}

func (s *Server) handleSetCategorySurvey(w http.ResponseWriter, r *http.Request) {
	st, finalize, ok := s.decodeSurvey(w, r)
	if !ok {
		return
	}
	applied, err := s.service.SetCategorySurveyStatus(r.Context(), r.PathValue("id"), r.PathValue("categoryID"), st, finalize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appliedResponse{Applied: applied})
}

type optionRequest struct {
	Value *domain.OptionValue `json:"value"`
}

func (s *Server) handleSetOption(w http.ResponseWriter, r *http.Request) {
	var req optionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if req.Value == nil {
		s.badRequest(w, "value is required")
		return
	}
	applied, err := s.service.SetOption(r.Context(), r.PathValue("id"), r.PathValue("itemID"), r.PathValue("label"), *req.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appliedResponse{Applied: applied})
}

func (s *Server) handleClearOption(w http.ResponseWriter, r *http.Request) {
	applied, err := s.service.ClearOption(r.Context(), r.PathValue("id"), r.PathValue("itemID"), r.PathValue("label"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appliedResponse{Applied: applied})
}

type existenceRequest struct {
	Exists *bool `json:"exists"`
}

func (s *Server) handleSetGroupExistence(w http.ResponseWriter, r *http.Request) {
	var req existenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	if req.Exists == nil {
		s.badRequest(w, "exists is required")
		return
	}
	applied, err := s.service.SetGroupExistence(r.Context(), r.PathValue("id"), r.PathValue("groupID"), *req.Exists)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appliedResponse{Applied: applied})
}

type finishMaterialsRequest struct {
	Materials []string `json:"materials"`
}

func (s *Server) handleSetFinishMaterials(w http.ResponseWriter, r *http.Request) {
	var req finishMaterialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	applied, err := s.service.SetFinishMaterials(r.Context(), r.PathValue("id"), r.PathValue("groupID"), req.Materials)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appliedResponse{Applied: applied})
}

func (s *Server) handleSetMaintenance(w http.ResponseWriter, r *http.Request) {
	var req domain.MaintenanceStatus
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, err.Error())
		return
	}
	applied, err := s.service.SetMaintenanceStatus(r.Context(), r.PathValue("id"), r.PathValue("maintenanceID"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, appliedResponse{Applied: applied})
}
