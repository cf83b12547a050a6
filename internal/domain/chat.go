package domain

// ChatMessage is the provider-agnostic chat message shape shared by prompt
// assembly and the completion client, which renders it into the model's
// native transcript format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
