package agent

import (
	"fmt"
	"strings"
)

const decideSystemPrompt = `You route questions for a research assistant.
Given the user's question, pick exactly one search mode:
- none: you can answer from general knowledge, no retrieval needed
- local: the question is about the indexed document collection
- web: the question needs fresh or external information from the web
- hybrid: it needs both the document collection and the web

Respond with a single line:
MODE: <none|local|web|hybrid>`

const expandSystemPrompt = `You rewrite search queries.
Produce up to 3 alternative phrasings of the user's question, each
covering a different keyword angle. One phrasing per line, no
numbering, no commentary.`

const judgeSystemPrompt = `You judge whether retrieved evidence is enough to answer a question.
Classify the evidence as one of:
- sufficient: the evidence answers the question
- insufficient: relevant but incomplete, a refined search could help
- irrelevant: the evidence does not address the question at all

Respond in exactly this format:
VERDICT: <sufficient|insufficient|irrelevant>
REASON: <one line>
REFINED_QUERY: <a better search query, only when the verdict is not sufficient>`

const answerSystemPrompt = `You are a research assistant. Answer the user's question.
When evidence is provided, ground the answer in it and cite sources in
[brackets]. When no evidence is provided, answer from general
knowledge. Say so plainly if the evidence does not settle the question.`

func decideUserPrompt(question string) string {
	return fmt.Sprintf("Question: %s", question)
}

func expandUserPrompt(question string) string {
	return fmt.Sprintf("Question: %s", question)
}

func judgeUserPrompt(question string, evidence []Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nEvidence:\n", question)
	if len(evidence) == 0 {
		b.WriteString("(none retrieved)\n")
	}
	for i, ev := range evidence {
		fmt.Fprintf(&b, "[%d] (%s, %s) %s\n", i+1, ev.Origin, ev.Source, ev.Content)
	}
	return b.String()
}

func answerUserPrompt(question string, evidence []Evidence) string {
	if len(evidence) == 0 {
		return question
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nEvidence:\n", question)
	for i, ev := range evidence {
		fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, ev.Source, ev.Content)
	}
	return b.String()
}
