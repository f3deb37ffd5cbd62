package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/muhammadolammi/careercards/internal/config"
	"github.com/muhammadolammi/careercards/internal/inference"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	adksession "google.golang.org/adk/session"
	"google.golang.org/genai"
)

const agentName = "career_card_writer"

const agentInstruction = `
You are an expert AI career assistant. Each message contains a complete task and the exact JSON format
to answer in. Base all reasoning only on the provided text. Do not make up data.
Return only valid JSON. Do not include explanations or text before or after the JSON.`

func GetAgent(ctx context.Context, apiKey, modelName, name string) (agent.Agent, error) {
	model, err := gemini.NewModel(ctx, modelName, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %v", err)
	}

	customAgent, err := llmagent.New(llmagent.Config{
		Name:        name,
		Model:       model,
		Description: "Writes and evaluates career experience cards",
		Instruction: agentInstruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %v", err)
	}

	return customAgent, err
}

// newTransport builds the model transport named by inference_transport.
func newTransport(ctx context.Context, cfg *config.Config) (inference.Transport, error) {
	switch cfg.InferenceTransport {
	case "genai":
		return inference.NewGenAITransport(ctx, cfg.GoogleAPIKey, cfg.InferenceModel)

	case "agent":
		cardAgent, err := GetAgent(ctx, cfg.GoogleAPIKey, cfg.InferenceModel, agentName)
		if err != nil {
			return nil, err
		}
		inMemoryService := adksession.InMemoryService()
		r, err := runner.New(runner.Config{
			AppName:        cardAgent.Name(),
			Agent:          cardAgent,
			SessionService: inMemoryService,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create runner: %v", err)
		}
		return inference.NewAgentTransport(r, inMemoryService, cardAgent.Name()), nil

	default:
		return inference.NewHTTPTransport(cfg.InferenceEndpoint, cfg.GoogleAPIKey, &http.Client{}), nil
	}
}
