package usecase

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"

	"chat-dispatch/internal/domain"
)

const (
	ModelGemini   = "gemini"
	ModelDeepseek = "deepseek"

	// deepseekModel is the fixed upstream model for the Deepseek path.
	deepseekModel = "deepseek-chat"
)

type GeminiClient interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type ChatCompletionClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

type DispatchService struct {
	gemini   GeminiClient
	deepseek ChatCompletionClient
	validate *validator.Validate
}

// DispatchInput is one inbound chat request. An empty Model selects Gemini.
type DispatchInput struct {
	Messages domain.Messages
	Model    string
}

type DispatchOutput struct {
	Result string
}

func NewDispatchService(g GeminiClient, d ChatCompletionClient) (*DispatchService, error) {
	if g == nil {
		return nil, errors.New("usecase: gemini client must not be nil")
	}
	if d == nil {
		return nil, errors.New("usecase: deepseek client must not be nil")
	}
	return &DispatchService{
		gemini:   g,
		deepseek: d,
		validate: validator.New(),
	}, nil
}

// Dispatch validates in, makes at most one provider call and normalizes the
// answer. Every returned error is a *Error.
func (s *DispatchService) Dispatch(ctx context.Context, in DispatchInput) (DispatchOutput, error) {
	model := in.Model
	if model == "" {
		model = ModelGemini
	}
	if err := s.validate.Var(model, "oneof="+ModelGemini+" "+ModelDeepseek); err != nil {
		return DispatchOutput{}, newError(ErrorInvalidModel, "unknown_model", MessageInvalidModel)
	}

	switch model {
	case ModelDeepseek:
		return s.dispatchDeepseek(ctx, in.Messages)
	default:
		return s.dispatchGemini(ctx, in.Messages)
	}
}

func (s *DispatchService) dispatchGemini(ctx context.Context, messages domain.Messages) (DispatchOutput, error) {
	prompt, ok := geminiPrompt(messages)
	if !ok {
		return DispatchOutput{}, newError(ErrorInvalidMessages, "gemini_messages_format", MessageInvalidMessages)
	}
	result, err := s.gemini.GenerateContent(ctx, prompt)
	if err != nil {
		return DispatchOutput{}, providerError(ModelGemini, MessageGeminiError, err)
	}
	return DispatchOutput{Result: result}, nil
}

func (s *DispatchService) dispatchDeepseek(ctx context.Context, messages domain.Messages) (DispatchOutput, error) {
	msgs, ok := chatMessages(messages)
	if !ok {
		return DispatchOutput{}, newError(ErrorInvalidMessages, "deepseek_messages_format", MessageInvalidMessages)
	}
	result, err := s.deepseek.Chat(ctx, deepseekModel, msgs)
	if err != nil {
		return DispatchOutput{}, providerError(ModelDeepseek, MessageDeepseekError, err)
	}
	return DispatchOutput{Result: result}, nil
}
