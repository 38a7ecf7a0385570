// Package llm implements the classification, decomposition, follow-up and
// synthesis capabilities on top of an api.Completer.
package llm

const classifySystemPrompt = `You classify questions for a research assistant.
A question is QUANTIFIABLE when it can be answered with concrete facts: metrics,
figures, dates, definitions, or comparisons of measurable things.
A question is NOT quantifiable when it asks for opinion, motivation, or open-ended explanation.

Reply with ONLY a JSON object: {"quantifiable": true} or {"quantifiable": false}`

const decomposeSystemPrompt = `You break broad questions into smaller factual questions.
Each sub-question must be standalone (understandable without the original),
answerable with concrete facts, and distinct from the others.

Reply with ONLY a JSON array of %d to %d strings. No other text.`

const followupSystemPrompt = `You propose follow-up research questions.
Given a question and the answer found for it, propose at most %d further questions
that are answerable with concrete facts and would deepen the answer.
Do not repeat the original question. If nothing useful remains, reply with [].

Reply with ONLY a JSON array of strings. No other text.`

const synthesizeSystemPrompt = `You answer questions using ONLY the numbered web snippets provided.
Be concise and factual. If the snippets do not contain the answer, say so plainly.
End your reply with a "Sources:" section listing the links you relied on.`
