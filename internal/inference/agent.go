package inference

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const agentUserID = "career-cards"

// AgentTransport runs the prompt through an ADK agent runner. Every call gets
// its own agent session, deleted once the final response is read.
type AgentTransport struct {
	runner   *runner.Runner
	sessions session.Service
	appName  string
}

func NewAgentTransport(r *runner.Runner, sessions session.Service, appName string) *AgentTransport {
	return &AgentTransport{runner: r, sessions: sessions, appName: appName}
}

func (t *AgentTransport) Generate(ctx context.Context, prompt string) (string, error) {
	created, err := t.sessions.Create(ctx, &session.CreateRequest{
		AppName:   t.appName,
		UserID:    agentUserID,
		SessionID: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create agent session: %w", err)
	}
	agentSession := created.Session
	defer func() {
		_ = t.sessions.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   agentSession.AppName(),
			UserID:    agentSession.UserID(),
			SessionID: agentSession.ID(),
		})
	}()

	stream := t.runner.Run(ctx, agentSession.UserID(), agentSession.ID(), &genai.Content{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt},
		},
	}, agent.RunConfig{})

	var output string
	for event, err := range stream {
		if err != nil {
			return "", err
		}
		if event != nil && event.IsFinalResponse() && event.Content != nil && len(event.Content.Parts) > 0 {
			output = event.Content.Parts[0].Text
		}
	}
	if output == "" {
		return "", fmt.Errorf("%w: empty agent response", ErrEmptyResponse)
	}
	return output, nil
}
