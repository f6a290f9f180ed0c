package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/clinic-suggestion-engine/internal/domain"
)

// optimizeRequest is the body of the prescription optimization endpoint.
type optimizeRequest struct {
	PatientID string                    `json:"patient_id"`
	Diagnosis string                    `json:"diagnosis,omitempty"`
	Items     []domain.PrescriptionItem `json:"items"`
}

// interactionRequest is the body of the interaction check endpoint.
type interactionRequest struct {
	Medications []string `json:"medications"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			s.log.WithError(err).Warn("Knowledge base health check failed")
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	body := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	}
	if s.kbInfo != nil {
		body["knowledge"] = s.kbInfo()
	}

	c.JSON(code, body)
}

func (s *Server) handleSuggestMedicines(c *gin.Context) {
	var req domain.SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.NewValidationError("body", "invalid request body", nil))
		return
	}

	resp, err := s.suggester.Suggest(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSuggestDosage(c *gin.Context) {
	var req domain.SuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.NewValidationError("body", "invalid request body", nil))
		return
	}

	resp, err := s.dosage.Suggest(c.Request.Context(), &req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCheckInteractions(c *gin.Context) {
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.NewValidationError("body", "invalid request body", nil))
		return
	}

	report, err := s.checker.Check(c.Request.Context(), req.Medications)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleOptimizePrescription(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.NewValidationError("body", "invalid request body", nil))
		return
	}

	result, err := s.optimizer.Optimize(c.Request.Context(), req.PatientID, req.Diagnosis, req.Items)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// writeError maps domain errors to HTTP status codes. Validation errors
// are the caller's to fix, not-found is a clean miss, dependency errors
// are retryable; everything else is an internal error with the detail
// kept in the log, not the response.
func (s *Server) writeError(c *gin.Context, err error) {
	correlationID := c.GetString("correlation_id")

	var status int
	var code string
	switch {
	case domain.IsValidation(err):
		status = http.StatusBadRequest
		code = domain.ErrCodeValidation
	case domain.IsNotFound(err):
		status = http.StatusNotFound
		code = domain.ErrCodeNotFound
	case domain.IsDependency(err):
		status = http.StatusServiceUnavailable
		code = domain.ErrCodeDependency
	default:
		status = http.StatusInternalServerError
		code = domain.ErrCodeInternal
	}

	if status == http.StatusInternalServerError {
		s.log.WithFields(logrus.Fields{
			"correlation_id": correlationID,
			"path":           c.FullPath(),
			"error":          err,
		}).Error("Request failed")
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}

	c.JSON(status, domain.NewEngineError(code, message, "", correlationID))
}
