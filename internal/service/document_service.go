package service

import (
	"context"
	"errors"
	"path"
	"strings"

	"buspass/internal/models"
	"buspass/internal/repository"
	"buspass/internal/storage"
)

// Document is a stored supporting document ready to be served.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentService serves an application's stored documents to operators.
type DocumentService struct {
	repo  repository.ApplicationRepository
	store storage.Store
}

func NewDocumentService(repo repository.ApplicationRepository, store storage.Store) *DocumentService {
	return &DocumentService{repo: repo, store: store}
}

// Fetch returns the document of the given kind. preview selects the WebP
// rendition of the photo.
func (s *DocumentService) Fetch(ctx context.Context, applicationNo string, kind models.DocumentKind, preview bool) (*Document, error) {
	rec, err := s.repo.GetByApplicationNo(ctx, applicationNo)
	if err != nil {
		return nil, err
	}
	key := rec.DocumentRef(kind)
	if key == "" {
		return nil, models.NewNotFoundError("Document", string(kind))
	}
	if preview {
		if kind != models.DocumentPhoto {
			return nil, models.NewValidationError("Only the photo has a preview")
		}
		key = PreviewKey(key)
	}

	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, models.NewNotFoundError("Document", string(kind))
		}
		return nil, models.NewInternalError(err)
	}
	ext := strings.ToLower(path.Ext(key))
	return &Document{
		Filename:    rec.ApplicationNo + "-" + string(kind) + ext,
		ContentType: contentTypeForExt(ext),
		Data:        data,
	}, nil
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}
