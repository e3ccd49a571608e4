// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"buspass/internal/models"
	"buspass/internal/repository"
)

// NewApplication returns a Pending college application with every document attached.
func NewApplication(applicationNo string) *models.ApplicationRecord {
	rec := &models.ApplicationRecord{
		ApplicationNo:       applicationNo,
		StudentName:         "Student " + applicationNo,
		Age:                 20,
		Gender:              "F",
		StudentContact:      "9876543210",
		PersonalEmail:       strings.ToLower(applicationNo) + "@students.example.com",
		RouteStart:          "Central Depot",
		RouteEnd:            "Campus Gate",
		PhotoRef:            "applications/" + applicationNo + "/photo.jpg",
		IdentityProofRef:    "applications/" + applicationNo + "/identity_proof.pdf",
		InstitutionProofRef: "applications/" + applicationNo + "/institution_proof.pdf",
		BonafideRef:         "applications/" + applicationNo + "/bonafide.pdf",
		Status:              models.StatusPending,
	}
	rec.SetInstitution(models.College{Name: "Riverside College", Department: "Commerce", Year: "1"})
	return rec
}

// ApplicationRepoStub is an in-memory ApplicationRepository with the same
// compare-and-set semantics as the database implementation.
type ApplicationRepoStub struct {
	mu     sync.Mutex
	items  map[string]*models.ApplicationRecord
	nextID uint
	// Err, when set, is returned by every call.
	Err error
}

// NewApplicationRepoStub creates an empty stub.
func NewApplicationRepoStub() *ApplicationRepoStub {
	return &ApplicationRepoStub{items: make(map[string]*models.ApplicationRecord), nextID: 1}
}

var _ repository.ApplicationRepository = (*ApplicationRepoStub)(nil)

func (s *ApplicationRepoStub) Create(_ context.Context, rec *models.ApplicationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if _, exists := s.items[rec.ApplicationNo]; exists {
		return models.NewDuplicateKeyError("Application", rec.ApplicationNo)
	}
	if rec.Status == "" {
		rec.Status = models.StatusPending
	}
	rec.ID = s.nextID
	s.nextID++
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	stored := *rec
	s.items[rec.ApplicationNo] = &stored
	return nil
}

func (s *ApplicationRepoStub) GetByApplicationNo(_ context.Context, applicationNo string) (*models.ApplicationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	rec, ok := s.items[applicationNo]
	if !ok {
		return nil, models.NewNotFoundError("Application", applicationNo)
	}
	out := *rec
	return &out, nil
}

func (s *ApplicationRepoStub) Update(_ context.Context, applicationNo string, expected models.ApplicationStatus, mutate func(*models.ApplicationRecord) error) (*models.ApplicationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	current, ok := s.items[applicationNo]
	if !ok {
		return nil, models.NewNotFoundError("Application", applicationNo)
	}
	next := *current
	if err := mutate(&next); err != nil {
		return nil, err
	}
	if current.Status != expected {
		return nil, models.NewInvalidTransitionError(applicationNo, current.Status, next.Status)
	}
	next.ID = current.ID
	next.ApplicationNo = current.ApplicationNo
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	s.items[applicationNo] = &next
	out := next
	return &out, nil
}

func (s *ApplicationRepoStub) sorted() []models.ApplicationRecord {
	out := make([]models.ApplicationRecord, 0, len(s.items))
	for _, rec := range s.items {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *ApplicationRepoStub) List(_ context.Context, filter repository.ApplicationFilter) ([]models.ApplicationRecord, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, 0, s.Err
	}
	q := strings.ToLower(strings.TrimSpace(filter.Query))
	var matched []models.ApplicationRecord
	for _, rec := range s.sorted() {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(rec.StudentName), q) && !strings.Contains(strings.ToLower(rec.ApplicationNo), q) {
			continue
		}
		matched = append(matched, rec)
	}
	total := int64(len(matched))
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if filter.Offset >= len(matched) {
		return []models.ApplicationRecord{}, total, nil
	}
	end := filter.Offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[filter.Offset:end], total, nil
}

func (s *ApplicationRepoStub) ListAll(_ context.Context) ([]models.ApplicationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.sorted(), nil
}

func (s *ApplicationRepoStub) CountByStatus(_ context.Context) (map[models.ApplicationStatus]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	counts := map[models.ApplicationStatus]int64{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for _, rec := range s.items {
		counts[rec.Status]++
	}
	return counts, nil
}
