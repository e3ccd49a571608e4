package server

import (
	"strings"

	"buspass/internal/middleware"
	"buspass/internal/models"
	"buspass/internal/repository"

	"github.com/gofiber/fiber/v2"
)

// applicationDetail is the operator's view of a record. The record's JSON
// hides storage keys and the flat institution columns.
type applicationDetail struct {
	*models.ApplicationRecord
	Institution fiber.Map       `json:"institution"`
	Documents   map[string]bool `json:"documents"`
	Missing     []string        `json:"missing_documents"`
}

func detailFor(rec *models.ApplicationRecord) applicationDetail {
	d := applicationDetail{
		ApplicationRecord: rec,
		Documents:         make(map[string]bool, len(models.DocumentKinds())),
		Missing:           rec.MissingDocuments(),
	}
	switch p := rec.Institution().(type) {
	case models.School:
		d.Institution = fiber.Map{"type": p.Type(), "name": p.Name, "standard": p.Standard}
	case models.College:
		d.Institution = fiber.Map{"type": p.Type(), "name": p.Name, "department": p.Department, "year": p.Year}
	}
	for _, kind := range models.DocumentKinds() {
		d.Documents[string(kind)] = rec.DocumentRef(kind) != ""
	}
	return d
}

// ListApplications handles GET /api/admin/applications
// @Summary List applications
// @Description Newest first. Without query parameters every application is returned.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Pending, Approved or Rejected"
// @Param q query string false "Matches student name or application number"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} service.ListResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /admin/applications [get]
func (s *Server) ListApplications(c *fiber.Ctx) error {
	var filter repository.ApplicationFilter

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, ok := models.ParseApplicationStatus(raw)
		if !ok {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Status must be Pending, Approved or Rejected"))
		}
		filter.Status = status
	}
	filter.Query = strings.TrimSpace(c.Query("q"))
	if filter != (repository.ApplicationFilter{}) || c.Query("limit") != "" || c.Query("offset") != "" {
		page := parsePagination(c, 20)
		filter.Limit = page.Limit
		filter.Offset = page.Offset
	}

	result, err := s.gateway.ListAll(c.UserContext(), middleware.PrincipalFrom(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// GetApplicationSummary handles GET /api/admin/applications/summary
// @Summary Application counts by status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Failure 401 {object} models.ErrorResponse
// @Router /admin/applications/summary [get]
func (s *Server) GetApplicationSummary(c *fiber.Ctx) error {
	counts, err := s.gateway.Summary(c.UserContext(), middleware.PrincipalFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(counts)
}

// GetApplication handles GET /api/admin/applications/:applicationNo
// @Summary Get an application
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param applicationNo path string true "Application number"
// @Success 200 {object} models.ApplicationRecord
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/applications/{applicationNo} [get]
func (s *Server) GetApplication(c *fiber.Ctx) error {
	rec, err := s.gateway.Lookup(c.UserContext(), middleware.PrincipalFrom(c), applicationNoParam(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detailFor(rec))
}

// ApproveApplication handles POST /api/admin/applications/:applicationNo/approve
// @Summary Approve an application
// @Description Only Pending applications with every document on file can be approved
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param applicationNo path string true "Application number"
// @Success 200 {object} models.ApplicationRecord
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /admin/applications/{applicationNo}/approve [post]
func (s *Server) ApproveApplication(c *fiber.Ctx) error {
	rec, err := s.gateway.Approve(c.UserContext(), middleware.PrincipalFrom(c), applicationNoParam(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detailFor(rec))
}

// RejectApplication handles POST /api/admin/applications/:applicationNo/reject
// @Summary Reject an application
// @Description The reason must come from GET /rejection-reasons
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param applicationNo path string true "Application number"
// @Param request body object{reason=string} true "Rejection reason"
// @Success 200 {object} models.ApplicationRecord
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/applications/{applicationNo}/reject [post]
func (s *Server) RejectApplication(c *fiber.Ctx) error {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	rec, err := s.gateway.Reject(c.UserContext(), middleware.PrincipalFrom(c), applicationNoParam(c), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detailFor(rec))
}

// GenerateIDCard handles GET /api/admin/applications/:applicationNo/id-card
// @Summary Download the bus-pass ID card
// @Description Renders the card PDF for an Approved application
// @Tags admin
// @Produce application/pdf
// @Security BearerAuth
// @Param applicationNo path string true "Application number"
// @Success 200 {file} file
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 424 {object} models.ErrorResponse
// @Router /admin/applications/{applicationNo}/id-card [get]
func (s *Server) GenerateIDCard(c *fiber.Ctx) error {
	cred, err := s.gateway.GenerateCredential(c.UserContext(), middleware.PrincipalFrom(c), applicationNoParam(c))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, cred.ContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+cred.Filename)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(cred.Data)
}

// GetApplicationDocument handles GET /api/admin/applications/:applicationNo/documents/:kind
// @Summary Download a supporting document
// @Tags admin
// @Produce octet-stream
// @Security BearerAuth
// @Param applicationNo path string true "Application number"
// @Param kind path string true "photo, identity_proof, institution_proof or bonafide"
// @Param format query string false "webp for the photo preview"
// @Success 200 {file} file
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/applications/{applicationNo}/documents/{kind} [get]
func (s *Server) GetApplicationDocument(c *fiber.Ctx) error {
	kind, ok := models.ParseDocumentKind(c.Params("kind"))
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unknown document kind"))
	}
	preview := strings.EqualFold(c.Query("format"), "webp")

	doc, err := s.gateway.Document(c.UserContext(), middleware.PrincipalFrom(c), applicationNoParam(c), kind, preview)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, "inline; filename="+doc.Filename)
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Send(doc.Data)
}
