// Package seed creates demo applications, documents and card assets for
// development and testing. It is never run in production.
package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"buspass/internal/models"
	"buspass/internal/repository"
	"buspass/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
)

var (
	routeStops = []string{
		"Central Bus Stand", "Railway Station", "Market Square", "Lake View", "Old Town",
		"Industrial Estate", "Hospital Junction", "Airport Road", "River Bridge", "Tech Park",
		"North Campus", "South Campus", "Temple Street", "Stadium", "Bus Depot",
	}
	departments = []string{"Physics", "Chemistry", "Commerce", "Computer Science", "History", "Mathematics", "Mechanical", "Civil"}
	standards   = []string{"6", "7", "8", "9", "10", "11", "12"}
	genders     = []string{"Male", "Female", "Other"}
)

// Factory builds applications and persists them with their documents.
type Factory struct {
	repo   repository.ApplicationRepository
	store  storage.Store
	opts   Options
	faker  *gofakeit.Faker
	// counter for application numbers and synthetic IDs in DryRun mode
	next   uint
	prefix string
}

// NewFactory creates a Factory. repo and store may be nil in DryRun mode.
func NewFactory(repo repository.ApplicationRepository, store storage.Store, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "D" + time.Now().UTC().Format("060102150405")
	}
	return &Factory{repo: repo, store: store, opts: opts, faker: gofakeit.New(seed), next: 1, prefix: prefix}
}

// BuildApplication returns a Pending application with realistic details but
// no documents. Nothing is persisted.
func (f *Factory) BuildApplication(overrides ...func(*models.ApplicationRecord)) *models.ApplicationRecord {
	fk := f.faker
	first, last := fk.FirstName(), fk.LastName()
	dob := fk.DateRange(time.Now().AddDate(-24, 0, 0), time.Now().AddDate(-11, 0, 0)).UTC()

	rec := &models.ApplicationRecord{
		ApplicationNo:  fmt.Sprintf("%s-%05d", f.prefix, f.next),
		StudentName:    first + " " + last,
		GuardianName:   fk.FirstName() + " " + last,
		DateOfBirth:    &dob,
		Gender:         fk.RandomString(genders),
		StudentContact: fk.Numerify("9#########"),
		ParentContact:  fk.Numerify("8#########"),
		PersonalEmail:  fmt.Sprintf("%s.%s%d@example.com", slug(first), slug(last), fk.Number(1, 99)),
		Status:         models.StatusPending,
	}
	f.next++

	start := fk.RandomString(routeStops)
	end := fk.RandomString(routeStops)
	for end == start {
		end = fk.RandomString(routeStops)
	}
	rec.RouteStart, rec.RouteEnd = start, end

	age := time.Now().Year() - dob.Year()
	rec.Age = age
	founder := fk.LastName()
	if age < 17 {
		rec.SetInstitution(models.School{Name: founder + " Public School", Standard: fk.RandomString(standards)})
		rec.InstitutionEmail = "office@" + slug(founder) + "-school.example.com"
	} else {
		rec.SetInstitution(models.College{
			Name:       founder + " College",
			Department: fk.RandomString(departments),
			Year:       fmt.Sprint(fk.Number(1, 4)),
		})
		rec.InstitutionEmail = slug(first) + "@" + slug(founder) + ".example.edu"
	}
	rec.InstitutionAddress = fk.Street() + ", " + fk.City()

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 30
	}
	rec.CreatedAt = time.Now().UTC().Add(-time.Duration(fk.Number(0, maxDays*24*60)) * time.Minute)

	for _, override := range overrides {
		override(rec)
	}
	return rec
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, s)
}

// CreateApplication builds an application, stores placeholder documents for it
// and persists it. The application is left Pending.
func (f *Factory) CreateApplication(ctx context.Context, overrides ...func(*models.ApplicationRecord)) (*models.ApplicationRecord, error) {
	rec := f.BuildApplication(overrides...)
	if f.opts.DryRun {
		rec.ID = f.next - 1
		return rec, nil
	}

	docs, err := placeholderDocuments(rec)
	if err != nil {
		return nil, err
	}
	for _, kind := range models.DocumentKinds() {
		doc := docs[kind]
		key := fmt.Sprintf("seed/%s/%s.%s", rec.ApplicationNo, kind, doc.ext)
		if err := f.store.Put(ctx, key, doc.contentType, doc.data); err != nil {
			return nil, fmt.Errorf("store %s: %w", kind, err)
		}
		rec.SetDocumentRef(kind, key)
	}

	if err := f.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Decide moves a seeded application to a terminal status as operatorID.
func (f *Factory) Decide(ctx context.Context, rec *models.ApplicationRecord, status models.ApplicationStatus, operatorID uint) (*models.ApplicationRecord, error) {
	reason := models.RejectionReason("")
	if status == models.StatusRejected {
		reasons := models.RejectionReasons()
		reason = reasons[f.faker.Number(0, len(reasons)-1)]
	}
	if f.opts.DryRun {
		rec.Status, rec.RejectionReason = status, reason
		return rec, nil
	}
	return f.repo.Update(ctx, rec.ApplicationNo, models.StatusPending, func(r *models.ApplicationRecord) error {
		reviewed := r.CreatedAt.Add(time.Duration(f.faker.Number(30, 48*60)) * time.Minute)
		r.Status = status
		r.RejectionReason = reason
		r.ReviewedAt = &reviewed
		if operatorID != 0 {
			r.ReviewedByOperatorID = &operatorID
		}
		return nil
	})
}
