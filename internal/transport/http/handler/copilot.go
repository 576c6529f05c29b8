package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"doccopilot/internal/app"
	"doccopilot/internal/pkg/pdfextract"
	"doccopilot/internal/rag"
	"doccopilot/internal/transport/http/response"
)

const maxPDFSize = 10 << 20 // 10 MB

type CopilotHandler struct {
	service *app.CopilotService
}

func NewCopilotHandler(service *app.CopilotService) *CopilotHandler {
	return &CopilotHandler{service: service}
}

type IngestTextRequest struct {
	Name string `json:"name"`
	Text string `json:"text" binding:"required"`
}

type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Question  string `json:"question" binding:"required"`
}

type EvalRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// IngestText indexes a raw-text document.
func (h *CopilotHandler) IngestText(c *gin.Context) {
	var req IngestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "Untitled"
	}

	result, err := h.service.Ingest(c.Request.Context(), name, req.Text)
	if err != nil {
		h.ingestError(c, err)
		return
	}
	response.OK(c, result)
}

// IngestPDF accepts a multipart form with "file" (PDF) and optional "name",
// extracts plain text, and indexes it.
func (h *CopilotHandler) IngestPDF(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxPDFSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 10MB)")
		return
	}
	if strings.ToLower(filepath.Ext(file.Filename)) != ".pdf" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only PDF files are accepted")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "failed to read file")
		return
	}
	defer f.Close()

	text, err := pdfextract.ExtractText(f)
	if err != nil {
		response.Error(c, http.StatusUnprocessableEntity, response.CodeUnprocessable, "cannot read PDF: "+err.Error())
		return
	}
	if strings.TrimSpace(text) == "" {
		response.Error(c, http.StatusUnprocessableEntity, response.CodeUnprocessable, "the PDF contains no extractable text")
		return
	}

	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		name = strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	}

	result, err := h.service.Ingest(c.Request.Context(), name, text)
	if err != nil {
		h.ingestError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *CopilotHandler) ingestError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, rag.ErrEmptyDocument):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeUnprocessable, err.Error())
	case errors.Is(err, rag.ErrDocumentTooLarge):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeUnprocessable, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "ingest failed")
	}
}

// Chat answers a question about an ingested document with citations.
func (h *CopilotHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.Chat(c.Request.Context(), req.SessionID, req.Question)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEmptyQuestion):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat failed")
		}
		return
	}
	response.OK(c, result)
}

// Evaluate runs the self-evaluation benchmarks for a session.
func (h *CopilotHandler) Evaluate(c *gin.Context) {
	var req EvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.service.Evaluate(c.Request.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		case errors.Is(err, rag.ErrNoTestQuestions):
			response.Error(c, http.StatusUnprocessableEntity, response.CodeUnprocessable, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "evaluation failed")
		}
		return
	}
	response.OK(c, result)
}
