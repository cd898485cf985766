package llm

import "fmt"

const promptTemplate = "Check if the software '%s' is harmful. " +
	"If harmful, provide root cause analysis. " +
	"Respond in valid JSON with keys: 'safety' (SAFE/HARMFUL), 'rca'."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// Prompt returns the instruction sent for a single software name.
func Prompt(itemName string) string {
	return fmt.Sprintf(promptTemplate, itemName)
}

func newChatRequest(model, itemName string) chatRequest {
	return chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: Prompt(itemName)}},
		Temperature: 0,
	}
}
