// Package threads provides domain entities for customer chat threads and their messages.
package threads

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CustomerRef identifies the customer side of a thread or chat
type CustomerRef struct {
	CustomerID string `json:"customerId" validate:"required"`
	Name       string `json:"name"`
}

// MemberRef identifies a workspace member replying on a thread
type MemberRef struct {
	MemberID string `json:"memberId" validate:"required"`
	Name     string `json:"name"`
}

// Thread is a customer conversation as listed in the conversations tab
type Thread struct {
	ThreadID           string       `json:"threadId" validate:"required"`
	Customer           CustomerRef  `json:"customer"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	Status             string       `json:"status" validate:"required"`
	Replied            bool         `json:"replied"`
	Priority           string       `json:"priority"`
	Channel            string       `json:"channel"`
	PreviewText        string       `json:"previewText"`
	Assignee           *MemberRef   `json:"assignee"`
	InboundFirstSeqID  *string      `json:"inboundFirstSeqId"`
	InboundLastSeqID   *string      `json:"inboundLastSeqId"`
	InboundCustomer    *CustomerRef `json:"inboundCustomer"`
	OutboundFirstSeqID *string      `json:"outboundFirstSeqId"`
	OutboundLastSeqID  *string      `json:"outboundLastSeqId"`
	OutboundMember     *MemberRef   `json:"outboundMember"`
	CreatedAt          string       `json:"createdAt" validate:"required"`
	UpdatedAt          string       `json:"updatedAt" validate:"required"`
}

// Chat is a single message on a thread. Exactly one of Customer or Member is set.
type Chat struct {
	ThreadID  string       `json:"threadId" validate:"required"`
	ChatID    string       `json:"chatId" validate:"required"`
	Body      string       `json:"body"`
	Sequence  int64        `json:"sequence"`
	Customer  *CustomerRef `json:"customer"`
	Member    *MemberRef   `json:"member"`
	IsHead    bool         `json:"isHead"`
	CreatedAt string       `json:"createdAt" validate:"required"`
	UpdatedAt string       `json:"updatedAt" validate:"required"`
}

// CreateThreadResponse is a newly opened thread together with its head chat
type CreateThreadResponse struct {
	Thread
	Chat Chat `json:"chat"`
}

// MessageBody is the request body for opening a thread or sending a message.
type MessageBody struct {
	Message string `json:"message" binding:"required"`
}

// DecodeThreads parses and validates a thread list.
func DecodeThreads(body []byte) ([]Thread, error) {
	var out []Thread
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode threads: %w", err)
	}
	for i := range out {
		if err := validate.Struct(out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeCreateThread parses and validates the response to opening a thread.
func DecodeCreateThread(body []byte) (CreateThreadResponse, error) {
	var out CreateThreadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode thread: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return out, err
	}
	return out, nil
}

// DecodeChats parses and validates a message list.
func DecodeChats(body []byte) ([]Chat, error) {
	var out []Chat
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode chats: %w", err)
	}
	for i := range out {
		if err := validate.Struct(out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DecodeChat parses and validates a single message.
func DecodeChat(body []byte) (Chat, error) {
	var out Chat
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode chat: %w", err)
	}
	if err := validate.Struct(out); err != nil {
		return out, err
	}
	return out, nil
}
