package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"buspass/internal/config"
	"buspass/internal/idcard"
	"buspass/internal/models"
	"buspass/internal/observability"
	"buspass/internal/repository"
	"buspass/internal/storage"

	"golang.org/x/sync/errgroup"
)

const (
	CredentialFilename    = "BusPass-ID.pdf"
	CredentialContentType = "application/pdf"

	DefaultSealKey      = "assets/seal.png"
	DefaultSignatureKey = "assets/signature.png"
)

// Credential is a rendered ID card ready to be served.
type Credential struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CredentialService renders ID cards for approved applications.
type CredentialService struct {
	repo         repository.ApplicationRepository
	store        storage.Store
	renderer     idcard.Renderer
	sealKey      string
	signatureKey string
}

// NewCredentialService reads the seal and signature keys from cfg.
func NewCredentialService(repo repository.ApplicationRepository, store storage.Store, cfg *config.Config) *CredentialService {
	s := &CredentialService{
		repo:         repo,
		store:        store,
		renderer:     idcard.Renderer{Compress: true},
		sealKey:      DefaultSealKey,
		signatureKey: DefaultSignatureKey,
	}
	if cfg != nil {
		if cfg.CardSealKey != "" {
			s.sealKey = cfg.CardSealKey
		}
		if cfg.CardSignatureKey != "" {
			s.signatureKey = cfg.CardSignatureKey
		}
	}
	return s
}

// CheckAssets confirms the seal and signature images every card needs are in
// the store.
func (s *CredentialService) CheckAssets(ctx context.Context) error {
	for _, asset := range []struct{ name, key string }{{"seal", s.sealKey}, {"signature", s.signatureKey}} {
		ok, err := s.store.Exists(ctx, asset.key)
		if err != nil {
			return models.NewAssetMissingError(asset.name, err)
		}
		if !ok {
			return models.NewAssetMissingError(asset.name, fmt.Errorf("no object at %s", asset.key))
		}
	}
	return nil
}

// WithRenderer replaces the renderer, e.g. to disable compression.
func (s *CredentialService) WithRenderer(r idcard.Renderer) *CredentialService {
	s.renderer = r
	return s
}

// Generate renders the card for an Approved application. It never mutates the record.
func (s *CredentialService) Generate(ctx context.Context, applicationNo string) (*Credential, error) {
	ctx, span := observability.StartServiceSpan(ctx, "credential.generate", applicationNo)
	defer span.End()

	rec, err := s.repo.GetByApplicationNo(ctx, applicationNo)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.StatusApproved {
		return nil, models.NewNotEligibleError(rec.ApplicationNo, rec.Status)
	}

	assets, err := s.loadAssets(ctx, rec)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	start := time.Now()
	data, err := s.renderer.Render(cardFor(rec), assets)
	observability.CredentialRenderSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	return &Credential{
		Filename:    CredentialFilename,
		ContentType: CredentialContentType,
		Data:        data,
	}, nil
}

func cardFor(rec *models.ApplicationRecord) idcard.Card {
	return idcard.Card{
		StudentName:   rec.StudentName,
		Institution:   rec.InstitutionName(),
		RouteStart:    rec.RouteStart,
		RouteEnd:      rec.RouteEnd,
		ApplicationNo: rec.ApplicationNo,
		Status:        string(rec.Status),
	}
}

// loadAssets fetches and normalizes the photo, seal and signature concurrently.
func (s *CredentialService) loadAssets(ctx context.Context, rec *models.ApplicationRecord) (idcard.Assets, error) {
	var assets idcard.Assets
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		img, err := s.loadImage(gctx, "photo", rec.PhotoRef, cardPhoto)
		assets.Photo = img
		return err
	})
	g.Go(func() error {
		img, err := s.loadImage(gctx, "seal", s.sealKey, cardAsset)
		assets.Seal = img
		return err
	})
	g.Go(func() error {
		img, err := s.loadImage(gctx, "signature", s.signatureKey, cardAsset)
		assets.Signature = img
		return err
	})

	if err := g.Wait(); err != nil {
		return idcard.Assets{}, err
	}
	return assets, nil
}

func (s *CredentialService) loadImage(ctx context.Context, name, key string, prepare func([]byte) (idcard.Image, error)) (idcard.Image, error) {
	if key == "" {
		return idcard.Image{}, models.NewAssetMissingError(name, errors.New("no reference on file"))
	}
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return idcard.Image{}, models.NewAssetMissingError(name, fmt.Errorf("%s not found", key))
		}
		if ctx.Err() != nil {
			return idcard.Image{}, ctx.Err()
		}
		return idcard.Image{}, models.NewAssetMissingError(name, err)
	}
	img, err := prepare(data)
	if err != nil {
		return idcard.Image{}, models.NewAssetMissingError(name, err)
	}
	return img, nil
}
