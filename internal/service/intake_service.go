package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"buspass/internal/config"
	"buspass/internal/models"
	"buspass/internal/notifications"
	"buspass/internal/observability"
	"buspass/internal/repository"
	"buspass/internal/storage"
	"buspass/internal/validation"

	"github.com/google/uuid"
)

const (
	DefaultDocumentMaxUploadMB = 5
	maxGeneratedNumberAttempts = 3
)

// Upload is one file received with an application.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SubmitInput is an applicant's form. Exactly one institution group is used,
// selected by InstitutionType.
type SubmitInput struct {
	ApplicationNo    string     `validate:"omitempty,appno"`
	StudentName      string     `validate:"required,max=120"`
	GuardianName     string     `validate:"omitempty,max=120"`
	DateOfBirth      *time.Time `validate:"-"`
	Age              int        `validate:"omitempty,gte=3,lte=60"`
	Gender           string     `validate:"omitempty,oneof=Male Female Other"`
	StudentContact   string     `validate:"omitempty,phone"`
	ParentContact    string     `validate:"omitempty,phone"`
	PersonalEmail    string     `validate:"omitempty,email,max=255"`
	InstitutionEmail string     `validate:"omitempty,email,max=255"`

	InstitutionType    string `validate:"required,oneof=School College"`
	SchoolName         string `validate:"required_if=InstitutionType School,max=200"`
	SchoolStandard     string `validate:"required_if=InstitutionType School,max=32"`
	CollegeName        string `validate:"required_if=InstitutionType College,max=200"`
	CollegeDepartment  string `validate:"required_if=InstitutionType College,max=120"`
	CollegeYear        string `validate:"required_if=InstitutionType College,max=16"`
	InstitutionAddress string `validate:"max=500"`

	RouteStart string `validate:"required,max=120"`
	RouteEnd   string `validate:"required,max=120"`

	Documents map[models.DocumentKind]Upload `validate:"-"`
}

// IntakeService accepts new applications and stores their documents.
type IntakeService struct {
	repo               repository.ApplicationRepository
	store              storage.Store
	publisher          ReviewPublisher
	maxUploadSizeBytes int64
	now                func() time.Time
}

// NewIntakeService builds the service. publisher may be nil.
func NewIntakeService(repo repository.ApplicationRepository, store storage.Store, publisher ReviewPublisher, cfg *config.Config) *IntakeService {
	maxMB := DefaultDocumentMaxUploadMB
	if cfg != nil && cfg.DocumentMaxUploadMB > 0 {
		maxMB = cfg.DocumentMaxUploadMB
	}
	return &IntakeService{
		repo:               repo,
		store:              store,
		publisher:          publisher,
		maxUploadSizeBytes: int64(maxMB) * 1024 * 1024,
		now:                func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates the form, stores the documents and creates a Pending
// application. Stored files are removed again if the record cannot be created.
func (s *IntakeService) Submit(ctx context.Context, in SubmitInput) (*models.ApplicationRecord, error) {
	ctx, span := observability.StartServiceSpan(ctx, "intake.submit", "")
	defer span.End()

	in = trimInput(in)
	if err := validation.Struct(in); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	for kind := range in.Documents {
		if _, ok := models.ParseDocumentKind(string(kind)); !ok {
			return nil, models.NewValidationError(fmt.Sprintf("Unknown document %q", kind))
		}
	}

	rec := s.recordFrom(in)
	generated := rec.ApplicationNo == ""

	for attempt := 0; ; attempt++ {
		if generated {
			rec.ApplicationNo = s.generateApplicationNo()
		}
		written, err := s.storeDocuments(ctx, rec, in.Documents)
		if err != nil {
			s.cleanup(ctx, written)
			return nil, err
		}

		err = s.repo.Create(ctx, rec)
		if err == nil {
			break
		}
		s.cleanup(ctx, written)
		if generated && models.IsCode(err, models.CodeDuplicateKey) && attempt+1 < maxGeneratedNumberAttempts {
			continue
		}
		return nil, err
	}

	observability.ApplicationsSubmitted.WithLabelValues(string(rec.InstitutionType)).Inc()
	observability.GlobalLogger.InfoContext(ctx, "application submitted",
		slog.String("application_no", rec.ApplicationNo),
		slog.String("institution_type", string(rec.InstitutionType)),
		slog.Int("documents", len(in.Documents)),
	)
	if s.publisher != nil {
		if err := s.publisher.PublishReviewEvent(ctx, notifications.EventForRecord(rec, 0)); err != nil {
			observability.LogBackgroundError(ctx, "publish_review_event", err, slog.String("application_no", rec.ApplicationNo))
		}
	}
	return rec, nil
}

func trimInput(in SubmitInput) SubmitInput {
	for _, f := range []*string{
		&in.ApplicationNo, &in.StudentName, &in.GuardianName, &in.Gender,
		&in.StudentContact, &in.ParentContact, &in.PersonalEmail, &in.InstitutionEmail,
		&in.InstitutionType, &in.SchoolName, &in.SchoolStandard, &in.CollegeName,
		&in.CollegeDepartment, &in.CollegeYear, &in.InstitutionAddress, &in.RouteStart, &in.RouteEnd,
	} {
		*f = strings.TrimSpace(*f)
	}
	in.ApplicationNo = strings.ToUpper(in.ApplicationNo)
	in.PersonalEmail = strings.ToLower(in.PersonalEmail)
	in.InstitutionEmail = strings.ToLower(in.InstitutionEmail)
	return in
}

func (s *IntakeService) recordFrom(in SubmitInput) *models.ApplicationRecord {
	rec := &models.ApplicationRecord{
		ApplicationNo:      in.ApplicationNo,
		StudentName:        in.StudentName,
		GuardianName:       in.GuardianName,
		DateOfBirth:        in.DateOfBirth,
		Age:                in.Age,
		Gender:             in.Gender,
		StudentContact:     in.StudentContact,
		ParentContact:      in.ParentContact,
		PersonalEmail:      in.PersonalEmail,
		InstitutionEmail:   in.InstitutionEmail,
		InstitutionAddress: in.InstitutionAddress,
		RouteStart:         in.RouteStart,
		RouteEnd:           in.RouteEnd,
		Status:             models.StatusPending,
	}
	if rec.Age == 0 && in.DateOfBirth != nil {
		rec.Age = ageOn(*in.DateOfBirth, s.now())
	}
	switch models.InstitutionType(in.InstitutionType) {
	case models.InstitutionSchool:
		rec.SetInstitution(models.School{Name: in.SchoolName, Standard: in.SchoolStandard})
	case models.InstitutionCollege:
		rec.SetInstitution(models.College{Name: in.CollegeName, Department: in.CollegeDepartment, Year: in.CollegeYear})
	}
	return rec
}

func ageOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// generateApplicationNo returns BP-YYYYMMDD-XXXXXX.
func (s *IntakeService) generateApplicationNo() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("BP-%s-%s", s.now().Format("20060102"), suffix)
}

// documentKey lays documents out by upload date and application.
func (s *IntakeService) documentKey(applicationNo string, kind models.DocumentKind, ext string) string {
	now := s.now()
	return fmt.Sprintf("applications/%d/%d/%d/%s/%s-%s.%s",
		now.Year(), int(now.Month()), now.Day(), applicationNo, kind, uuid.NewString(), ext)
}

// PreviewKey is the WebP preview stored beside a photo.
func PreviewKey(photoRef string) string {
	return strings.TrimSuffix(photoRef, ".jpg") + ".webp"
}

// storeDocuments writes every upload and records its key on rec. It returns
// the keys written so far, even on error.
func (s *IntakeService) storeDocuments(ctx context.Context, rec *models.ApplicationRecord, docs map[models.DocumentKind]Upload) ([]string, error) {
	var written []string
	for _, kind := range models.DocumentKinds() {
		up, ok := docs[kind]
		if !ok || len(up.Content) == 0 {
			rec.SetDocumentRef(kind, "")
			continue
		}
		if int64(len(up.Content)) > s.maxUploadSizeBytes {
			return written, models.NewValidationError(fmt.Sprintf("%s too large (max %dMB)", kind, s.maxUploadSizeBytes/(1024*1024)))
		}

		if kind == models.DocumentPhoto {
			photo, err := processPhoto(up.Content, up.ContentType)
			if err != nil {
				return written, err
			}
			key := s.documentKey(rec.ApplicationNo, kind, "jpg")
			if err := s.store.Put(ctx, key, "image/jpeg", photo.JPEG); err != nil {
				return written, models.NewInternalError(err)
			}
			written = append(written, key)
			if err := s.store.Put(ctx, PreviewKey(key), "image/webp", photo.WebP); err != nil {
				return written, models.NewInternalError(err)
			}
			written = append(written, PreviewKey(key))
			rec.SetDocumentRef(kind, key)
			continue
		}

		contentType, ext, ok := documentType(up.Content)
		if !ok {
			return written, models.NewValidationError(fmt.Sprintf("%s must be a JPEG, PNG or PDF file", kind))
		}
		key := s.documentKey(rec.ApplicationNo, kind, ext)
		if err := s.store.Put(ctx, key, contentType, up.Content); err != nil {
			return written, models.NewInternalError(err)
		}
		written = append(written, key)
		rec.SetDocumentRef(kind, key)
	}
	return written, nil
}

func (s *IntakeService) cleanup(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			observability.GlobalLogger.WarnContext(ctx, "failed to remove orphaned document",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}
