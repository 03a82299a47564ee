package app

import (
	"errors"
	"strings"

	"aidesk/internal/model"
	"aidesk/internal/repository"
)

var ErrKnowledgeItemNotFound = errors.New("knowledge item not found")

type KnowledgeService struct {
	repo *repository.KnowledgeRepository
}

type KnowledgeItemInput struct {
	Question  string
	Answer    string
	ImagePath string
}

func NewKnowledgeService(repo *repository.KnowledgeRepository) *KnowledgeService {
	return &KnowledgeService{repo: repo}
}

func (s *KnowledgeService) List() ([]model.KnowledgeItem, error) {
	return s.repo.ListAll()
}

func (s *KnowledgeService) Get(id uint) (*model.KnowledgeItem, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	item, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrKnowledgeItemNotFound
	}
	return item, nil
}

func (s *KnowledgeService) Add(input KnowledgeItemInput) (*model.KnowledgeItem, error) {
	question := strings.TrimSpace(input.Question)
	answer := strings.TrimSpace(input.Answer)
	if question == "" || answer == "" {
		return nil, ErrInvalidInput
	}

	item := &model.KnowledgeItem{
		Question:  question,
		Answer:    answer,
		ImagePath: input.ImagePath,
	}
	if err := s.repo.Create(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *KnowledgeService) Update(id uint, input KnowledgeItemInput) (*model.KnowledgeItem, error) {
	item, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if question := strings.TrimSpace(input.Question); question != "" {
		item.Question = question
	}
	if answer := strings.TrimSpace(input.Answer); answer != "" {
		item.Answer = answer
	}
	if input.ImagePath != "" {
		item.ImagePath = input.ImagePath
	}
	if err := s.repo.Update(item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *KnowledgeService) Delete(id uint) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.repo.DeleteByID(id)
}
