package mcqstudio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

// maxSourceText caps how much document text is sent to the model
const maxSourceText = 60000

// QuestionMaker generates questions from document text using an OpenAI chat model
type QuestionMaker struct {
	client *openai.Client
	model  string
}

// NewQuestionMaker creates a new question maker with OpenAI client
func NewQuestionMaker(apiKey, model string) *QuestionMaker {
	return NewQuestionMakerWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewQuestionMakerWithConfig creates a question maker against a custom
// endpoint, e.g. a proxy or a test server.
func NewQuestionMakerWithConfig(cfg openai.ClientConfig, model string) *QuestionMaker {
	if model == "" {
		model = openai.GPT4o
	}
	return &QuestionMaker{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// GenerateQuestions asks the model for count questions about text. The
// exchange is written to logger when it is not nil.
func (qm *QuestionMaker) GenerateQuestions(ctx context.Context, text string, count int, logger *LLMLogger) ([]RawQuestion, error) {
	VerboseLog("generating questions", "count", count, "model", qm.model, "text_chars", len(text))

	prompt := qm.buildPrompt(text, count)
	if logger != nil {
		logger.LogLLMRequest("QuestionMaker", prompt)
	}

	resp, err := qm.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: qm.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an intelligent MCQ generator. You write multiple choice questions strictly from the supplied content.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Tools: []openai.Tool{submitQuestionsTool},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: "submit_questions",
				},
			},
		},
	)
	if err != nil {
		if logger != nil {
			logger.LogBatchResult(count, 0, err)
		}
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	if logger != nil {
		logger.LogLLMResponse("QuestionMaker", responseText(resp))
	}

	questions, err := parseQuestionsResponse(resp)
	if logger != nil {
		logger.LogBatchResult(count, len(questions), err)
	}
	if err != nil {
		return nil, err
	}

	VerboseLog("generated questions", "count", len(questions))
	return questions, nil
}

var submitQuestionsTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        "submit_questions",
		Description: "Submit generated multiple choice questions",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"questions": map[string]interface{}{
					"type": "array",
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"question": map[string]interface{}{
								"type":        "string",
								"description": "The question text",
							},
							"type": map[string]interface{}{
								"type": "string",
								"enum": []string{"definition", "conceptual", "application", "analytical"},
							},
							"options": map[string]interface{}{
								"type": "array",
								"items": map[string]interface{}{
									"type": "string",
								},
								"description": "Exactly 4 distinct answer options",
							},
							"answer": map[string]interface{}{
								"type":        "string",
								"description": "The correct answer, copied exactly from options",
							},
							"difficulty": map[string]interface{}{
								"type": "string",
								"enum": []string{"easy", "medium", "hard"},
							},
						},
						"required": []string{"question", "type", "options", "answer", "difficulty"},
					},
				},
			},
			"required": []string{"questions"},
		},
	},
}

func (qm *QuestionMaker) buildPrompt(text string, count int) string {
	if len(text) > maxSourceText {
		cut := maxSourceText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From the following content, generate %d diverse multiple choice questions.\n\n", count))
	sb.WriteString("Requirements:\n")
	sb.WriteString("- Each question is one of these types: definition, conceptual, application, analytical\n")
	sb.WriteString("- Each question has exactly 4 distinct options\n")
	sb.WriteString("- The answer must be copied exactly from one of the options\n")
	sb.WriteString("- Each question has a difficulty of easy, medium or hard\n")
	sb.WriteString("- Only ask about facts stated in the content\n")
	sb.WriteString("- Use the submit_questions tool to return your questions\n\n")
	sb.WriteString("Content:\n")
	sb.WriteString(text)
	return sb.String()
}

func responseText(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		return msg.ToolCalls[0].Function.Arguments
	}
	return msg.Content
}

// parseQuestionsResponse reads the submit_questions tool call, or the
// message content when the model answered in plain JSON instead.
func parseQuestionsResponse(resp openai.ChatCompletionResponse) ([]RawQuestion, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from model")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) > 0 {
		toolCall := msg.ToolCalls[0]
		if toolCall.Function.Name != "submit_questions" {
			return nil, fmt.Errorf("unexpected tool call: %s", toolCall.Function.Name)
		}
		return decodeQuestionsJSON(toolCall.Function.Arguments)
	}

	if strings.TrimSpace(msg.Content) == "" {
		return nil, errors.New("empty response from model")
	}
	return decodeQuestionsJSON(msg.Content)
}

// decodeQuestionsJSON accepts a bare array, an object with a "questions" or
// "mcqs" array, optionally wrapped in a markdown code fence.
func decodeQuestionsJSON(raw string) ([]RawQuestion, error) {
	cleaned := stripCodeFence(raw)

	if strings.HasPrefix(cleaned, "[") {
		var questions []RawQuestion
		if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
			return nil, fmt.Errorf("invalid JSON response from model: %w", err)
		}
		return questions, nil
	}

	var wrapped struct {
		Questions []RawQuestion `json:"questions"`
		MCQs      []RawQuestion `json:"mcqs"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		return nil, fmt.Errorf("invalid JSON response from model: %w", err)
	}
	if len(wrapped.Questions) > 0 {
		return wrapped.Questions, nil
	}
	return wrapped.MCQs, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}
