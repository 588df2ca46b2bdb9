package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/symptomcheck/symptom-service/internal/api/dto"
	"github.com/symptomcheck/symptom-service/internal/auth"
	"github.com/symptomcheck/symptom-service/internal/domain"
	"github.com/symptomcheck/symptom-service/internal/service"
	apperrors "github.com/symptomcheck/symptom-service/pkg/util"
)

// SymptomsHandler exposes the analysis endpoints.
type SymptomsHandler struct {
	symptoms *service.SymptomService
	history  *service.HistoryService
}

// NewSymptomsHandler constructs handler.
func NewSymptomsHandler(symptomService *service.SymptomService, historyService *service.HistoryService) *SymptomsHandler {
	return &SymptomsHandler{symptoms: symptomService, history: historyService}
}

// Analyze handles POST /api/symptoms/analyze.
func (h *SymptomsHandler) Analyze(c *fiber.Ctx) error {
	principal, req, err := symptomInput(c)
	if err != nil {
		return err
	}
	result, err := h.symptoms.AnalyzeText(c.UserContext(), principal.User, req.Symptoms)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSymptomResponse(result.Record, result.Symptoms))
}

// AnalyzeWithPDF handles POST /api/symptoms/analyze-with-pdf.
func (h *SymptomsHandler) AnalyzeWithPDF(c *fiber.Ctx) error {
	principal, req, err := symptomInput(c)
	if err != nil {
		return err
	}
	result, err := h.symptoms.AnalyzeWithDocuments(c.UserContext(), principal.User, req.Symptoms)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSymptomResponse(result.Record, result.Symptoms))
}

// AnalyzeImage handles POST /api/symptoms/analyze-image (multipart "image",
// optional "symptoms").
func (h *SymptomsHandler) AnalyzeImage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	file, data, err := readUpload(c, "image")
	if err != nil {
		return err
	}
	result, err := h.symptoms.AnalyzeImage(c.UserContext(), principal.User, file.Filename, data, c.FormValue("symptoms"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewSymptomResponse(result.Record, result.Symptoms))
}

// UploadPDF handles POST /api/symptoms/upload-pdf (multipart "pdf").
func (h *SymptomsHandler) UploadPDF(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	file, data, err := readUpload(c, "pdf")
	if err != nil {
		return err
	}
	result, err := h.symptoms.UploadPDF(c.UserContext(), principal.User, file.Filename, data)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(dto.PDFUploadResponse{
		Message:         "PDF processed and stored successfully",
		Filename:        result.Filename,
		ChunksProcessed: result.ChunksProcessed,
		TotalTextLength: result.TextLength,
	})
}

// GetRecord handles GET /api/symptoms/history/:id.
func (h *SymptomsHandler) GetRecord(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized()
	}
	record, err := h.history.RecordForUserByID(c.UserContext(), principal.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewHistoryRecordResponse(*record))
}

func symptomInput(c *fiber.Ctx) (*auth.Principal, dto.SymptomRequest, error) {
	var req dto.SymptomRequest
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, req, apperrors.NewUnauthorized()
	}
	if err := c.BodyParser(&req); err != nil {
		return nil, req, apperrors.NewValidationError("invalid payload", nil)
	}
	return principal, req, nil
}

func readUpload(c *fiber.Ctx, field string) (*multipart.FileHeader, []byte, error) {
	file, err := c.FormFile(field)
	if err != nil {
		verr := domain.NewValidationError()
		verr.Add(field, "file is required")
		return nil, nil, verr
	}
	f, err := file.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read upload: %w", err)
	}
	return file, data, nil
}
