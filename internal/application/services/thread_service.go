package services

import (
	"strings"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/threads"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/repositories"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/security"
)

// ThreadService manages a customer's chat threads
type ThreadService struct {
	threadRepo repositories.ThreadRepository
}

func NewThreadService(threadRepo repositories.ThreadRepository) *ThreadService {
	return &ThreadService{threadRepo: threadRepo}
}

func (s *ThreadService) List(widgetID, customerID string) ([]*threads.Thread, error) {
	return s.threadRepo.FindByCustomer(widgetID, customerID)
}

// Create opens a thread with message as its head chat.
func (s *ThreadService) Create(widgetID string, rec *customer.Record, message string) (*threads.CreateThreadResponse, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	ref := threads.CustomerRef{CustomerID: rec.ID, Name: rec.Name}
	thread := &threads.Thread{
		ThreadID:    security.GenerateULID(),
		Customer:    ref,
		Title:       threads.Title(message),
		Description: message,
		Status:      threads.StatusTodo,
		Priority:    threads.PriorityNormal,
		Channel:     threads.ChannelChat,
		PreviewText: message,
	}
	head := &threads.Chat{ChatID: security.GenerateULID(), Body: message, Customer: &ref}
	if err := s.threadRepo.Create(widgetID, thread, head); err != nil {
		return nil, err
	}
	return &threads.CreateThreadResponse{Thread: *thread, Chat: *head}, nil
}

func (s *ThreadService) Messages(widgetID, customerID, threadID string) ([]*threads.Chat, error) {
	if _, err := s.find(widgetID, customerID, threadID); err != nil {
		return nil, err
	}
	return s.threadRepo.FindChats(threadID)
}

// Send appends a customer message to one of their threads.
func (s *ThreadService) Send(widgetID string, rec *customer.Record, threadID, message string) (*threads.Chat, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	thread, err := s.find(widgetID, rec.ID, threadID)
	if err != nil {
		return nil, err
	}
	chat := &threads.Chat{
		ChatID:   security.GenerateULID(),
		Body:     message,
		Customer: &threads.CustomerRef{CustomerID: rec.ID, Name: rec.Name},
	}
	if err := s.threadRepo.AppendChat(widgetID, thread, chat); err != nil {
		return nil, err
	}
	return chat, nil
}

func (s *ThreadService) find(widgetID, customerID, threadID string) (*threads.Thread, error) {
	thread, err := s.threadRepo.FindByID(widgetID, customerID, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, ErrThreadNotFound
	}
	return thread, nil
}
