package app

import (
	"errors"
	"strings"

	"aidesk/internal/model"
	"aidesk/internal/repository"
)

var ErrContextNotFound = errors.New("context not found")

type ContextService struct {
	repo *repository.ContextRepository
}

func NewContextService(repo *repository.ContextRepository) *ContextService {
	return &ContextService{repo: repo}
}

func (s *ContextService) AddText(userID uint, content string) (*model.Context, error) {
	content = strings.TrimSpace(content)
	if userID == 0 || content == "" {
		return nil, ErrInvalidInput
	}

	ctx := &model.Context{
		UserID:      userID,
		Content:     content,
		ContentType: model.ContextTypeText,
	}
	if err := s.repo.Create(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

// AddFile records a file-derived context: the file name as the display
// content, the extracted text as the raw content used for prompts.
func (s *ContextService) AddFile(userID uint, fileName, filePath, extracted string) (*model.Context, error) {
	if userID == 0 || fileName == "" {
		return nil, ErrInvalidInput
	}

	ctx := &model.Context{
		UserID:      userID,
		Content:     fileName,
		ContentType: model.ContextTypeFile,
		ContentRaw:  extracted,
		FilePath:    filePath,
	}
	if err := s.repo.Create(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (s *ContextService) ListForUser(userID uint) ([]model.Context, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByUserID(userID)
}

// LatestForUser returns nil without error when the user has no context rows.
func (s *ContextService) LatestForUser(userID uint) (*model.Context, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.LatestByUserID(userID)
}

func (s *ContextService) Delete(userID, contextID uint) error {
	if userID == 0 || contextID == 0 {
		return ErrInvalidInput
	}
	ctx, err := s.repo.GetByIDAndUserID(contextID, userID)
	if err != nil {
		return err
	}
	if ctx == nil {
		return ErrContextNotFound
	}
	return s.repo.DeleteByIDAndUserID(contextID, userID)
}
