package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
)

const filterSystemPrompt = `You are a content filter in a RAG pipeline for an assistant to a penetration tester conducting security assessments. Consider the following message history and user query. You will be given a list of documents that are available to assist you while responding to the query.
First repeat every available document title, ending each line with 'yes' or 'no' to note whether it would be useful when answering the user's query. Then include a valid JSON object with the following structure, listing the titles marked as useful:

{
    "context":[
        "document_1",
        "document_2",
        ...
    ]
}`

const summarySystemPrompt = `You are part of a RAG pipeline for an assistant to a penetration tester. You will be given the message history of the conversation between the assistant and the user so far, as well as the user's current query.
Concisely summarise the conversation history and the current user query so the rest of the pipeline knows which documents to fetch and include in the context.
Keep critical keywords and information about the discussion in your response. Pay particular attention to recent messages and the current user query.
If the topic has changed substantially over the conversation, only summarise the current topic.
Do not comment on your task. Do not attempt to answer the query. Your output should only be the summary.`

// AnswerSystemPrompt is the instruction block of the final answer prompt.
const AnswerSystemPrompt = `You are an assistant to a penetration tester performing security reviews. Consider the following query from a user, as well as the associated context information, which has been provided to aid in your response.
If the information requested by the user is not included in the context, say that you do not have the information. Do not attempt to answer queries that are not covered by the context.
Content in the context can be treated as reliable; code in the context is verified to work. If scripts can be reused verbatim, do so. If they need to be tweaked to achieve the desired result, make the necessary changes.`

// promptSection is one delimited block of a prompt.
type promptSection struct {
	name string
	body string
}

func buildPrompt(sections ...promptSection) string {
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "------- %s -------\n%s\n------- END %s -------\n\n", s.name, s.body, s.name)
	}
	return b.String()
}

// historyJSON renders the conversation the way every prompt embeds it. An
// empty history is "[]".
func historyJSON(history []domain.Message) string {
	if history == nil {
		history = []domain.Message{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func bulletList(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "* " + item
	}
	return strings.Join(lines, "\n")
}

func filterPrompt(candidates []string, query string, history []domain.Message) string {
	return buildPrompt(
		promptSection{"SYSTEM MESSAGE", filterSystemPrompt},
		promptSection{"PREVIOUS MESSAGES", historyJSON(history)},
		promptSection{"AVAILABLE DOCUMENTS", bulletList(candidates)},
		promptSection{"USER QUERY", query},
	)
}

func summaryPrompt(history []domain.Message, query string) string {
	return buildPrompt(
		promptSection{"SYSTEM MESSAGE", summarySystemPrompt},
		promptSection{"MESSAGE HISTORY", historyJSON(history)},
		promptSection{"USER QUERY", query},
	)
}

func answerPrompt(history []domain.Message, contextJSON, query string) string {
	return buildPrompt(
		promptSection{"SYSTEM MESSAGE", AnswerSystemPrompt},
		promptSection{"PREVIOUS MESSAGES", historyJSON(history)},
		promptSection{"CONTEXT INFORMATION", contextJSON},
		promptSection{"USER QUERY", query},
	)
}
