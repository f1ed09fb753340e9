// Package model defines the ChatModel interface the reasoning node calls.
//
// Adapters for concrete providers live in subpackages: openai (go-openai),
// anthropic (anthropic-sdk-go) and langchain (any langchaingo llms.Model).
// Each converts the conversation's tagged messages to the provider's wire
// types and converts the reply back into a single assistant message.
package model
