package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DefaultTargetLanguage is the translation target when none is configured.
const DefaultTargetLanguage = "English"

// ChatFallbackText replaces a chat answer the model failed to produce.
const ChatFallbackText = "Sorry, I couldn't answer that right now. Please try again."

var fallbackTexts = map[ViewKind]string{
	ViewSummary:     "Sorry, the summary could not be generated. Please try again later.",
	ViewTranslation: "Sorry, the translation could not be generated. Please try again later.",
	ViewRefinement:  "Sorry, the refined text could not be generated. Please try again later.",
}

// FallbackText is the fixed text substituted into a view whose derivation failed.
func FallbackText(kind ViewKind) string {
	if s, ok := fallbackTexts[kind]; ok {
		return s
	}
	return "Sorry, this view is not available."
}

// Generator derives secondary artifacts from transcript text.
type Generator struct {
	model          Model
	TargetLanguage string
}

func NewGenerator(model Model, targetLanguage string) *Generator {
	if strings.TrimSpace(targetLanguage) == "" {
		targetLanguage = DefaultTargetLanguage
	}
	return &Generator{model: model, TargetLanguage: targetLanguage}
}

// Derive computes one view and reports failures; the string helpers below swallow them.
func (g *Generator) Derive(ctx context.Context, kind ViewKind, text string) (string, error) {
	if g.model == nil {
		return "", errors.New("transcription.Generator: model is nil")
	}
	var instructions string
	switch kind {
	case ViewSummary:
		instructions = summaryPrompt
	case ViewTranslation:
		instructions = fmt.Sprintf(translationPromptFormat, g.TargetLanguage)
	case ViewRefinement:
		instructions = refinementPrompt
	default:
		return "", fmt.Errorf("unknown view %q", kind)
	}

	out, err := g.model.Generate(ctx, Request{
		Instructions: instructions,
		Prompt:       text,
	})
	if err != nil {
		return "", fmt.Errorf("derive %s: %w", kind, err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("derive %s: %w", kind, ErrEmptyResponse)
	}
	return out, nil
}

func (g *Generator) Summarize(ctx context.Context, text string) string {
	return g.deriveOrFallback(ctx, ViewSummary, text)
}

func (g *Generator) Translate(ctx context.Context, text string) string {
	return g.deriveOrFallback(ctx, ViewTranslation, text)
}

func (g *Generator) Refine(ctx context.Context, text string) string {
	return g.deriveOrFallback(ctx, ViewRefinement, text)
}

func (g *Generator) deriveOrFallback(ctx context.Context, kind ViewKind, text string) string {
	out, err := g.Derive(ctx, kind, text)
	if err != nil {
		return FallbackText(kind)
	}
	return out
}

// Reply answers question from transcript alone. history only carries the conversation so far;
// the transcript is sent again on every call.
func (g *Generator) Reply(ctx context.Context, history []ChatMessage, transcript, question string) (string, error) {
	if g.model == nil {
		return "", errors.New("transcription.Generator: model is nil")
	}
	out, err := g.model.Generate(ctx, Request{
		Instructions: chatPrompt + transcript,
		Prompt:       question,
		History:      history,
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("chat: %w", ErrEmptyResponse)
	}
	return out, nil
}

// Chat is Reply with ChatFallbackText in place of any error.
func (g *Generator) Chat(ctx context.Context, history []ChatMessage, transcript, question string) string {
	out, err := g.Reply(ctx, history, transcript, question)
	if err != nil {
		return ChatFallbackText
	}
	return out
}
