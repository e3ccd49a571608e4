package server

import (
	"io"
	"strconv"
	"strings"
	"time"

	"buspass/internal/models"
	"buspass/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SubmitApplication handles POST /api/applications
// @Summary Submit a bus-pass application
// @Description Multipart form with the student's details and the photo, identity proof, institution proof and bonafide files
// @Tags applications
// @Accept multipart/form-data
// @Produce json
// @Param student_name formData string true "Student name"
// @Param institution_type formData string true "School or College"
// @Param route_start formData string true "Boarding point"
// @Param route_end formData string true "Destination"
// @Param photo formData file false "Passport photo"
// @Param identity_proof formData file false "Identity proof"
// @Param institution_proof formData file false "Institution ID proof"
// @Param bonafide formData file false "Bonafide certificate"
// @Success 201 {object} object{application_no=string,status=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /applications [post]
func (s *Server) SubmitApplication(c *fiber.Ctx) error {
	in := service.SubmitInput{
		ApplicationNo:      c.FormValue("application_no"),
		StudentName:        c.FormValue("student_name"),
		GuardianName:       c.FormValue("guardian_name"),
		Gender:             c.FormValue("gender"),
		StudentContact:     c.FormValue("student_contact"),
		ParentContact:      c.FormValue("parent_contact"),
		PersonalEmail:      c.FormValue("personal_email"),
		InstitutionEmail:   c.FormValue("institution_email"),
		InstitutionType:    c.FormValue("institution_type"),
		SchoolName:         c.FormValue("school_name"),
		SchoolStandard:     c.FormValue("school_standard"),
		CollegeName:        c.FormValue("college_name"),
		CollegeDepartment:  c.FormValue("college_department"),
		CollegeYear:        c.FormValue("college_year"),
		InstitutionAddress: c.FormValue("institution_address"),
		RouteStart:         c.FormValue("route_start"),
		RouteEnd:           c.FormValue("route_end"),
		Documents:          make(map[models.DocumentKind]service.Upload),
	}

	if raw := strings.TrimSpace(c.FormValue("age")); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Age must be a number"))
		}
		in.Age = age
	}
	if raw := strings.TrimSpace(c.FormValue("date_of_birth")); raw != "" {
		dob, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Date of birth must be YYYY-MM-DD"))
		}
		in.DateOfBirth = &dob
	}

	for _, kind := range models.DocumentKinds() {
		fh, err := c.FormFile(string(kind))
		if err != nil {
			// Absent files are allowed at intake; approval checks completeness.
			continue
		}
		f, err := fh.Open()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Failed to read "+string(kind)))
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Failed to read "+string(kind)))
		}
		in.Documents[kind] = service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Content:     content,
		}
	}

	rec, err := s.intake.Submit(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"application_no": rec.ApplicationNo,
		"status":         rec.Status,
		"created_at":     rec.CreatedAt,
	})
}

// CheckStatus handles GET /api/applications/:applicationNo/status and POST /api/applications/status
// @Summary Check application status
// @Description Anonymous status lookup by application number
// @Tags applications
// @Accept json
// @Produce json
// @Param applicationNo path string false "Application number"
// @Param request body object{applicationNo=string} false "Status request"
// @Success 200 {object} service.StatusView
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /applications/{applicationNo}/status [get]
// @Router /applications/status [post]
func (s *Server) CheckStatus(c *fiber.Ctx) error {
	applicationNo := c.Params("applicationNo")
	if applicationNo == "" {
		var req struct {
			ApplicationNo string `json:"applicationNo" form:"applicationNo"`
		}
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		applicationNo = req.ApplicationNo
	}

	view, err := s.gateway.CheckStatus(c.UserContext(), strings.ToUpper(applicationNo))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(view)
}

// GetRejectionReasons handles GET /api/rejection-reasons
// @Summary List rejection reasons
// @Description The closed catalog of reasons an operator may reject with
// @Tags applications
// @Produce json
// @Success 200 {array} string
// @Router /rejection-reasons [get]
func (s *Server) GetRejectionReasons(c *fiber.Ctx) error {
	return c.JSON(models.RejectionReasons())
}
