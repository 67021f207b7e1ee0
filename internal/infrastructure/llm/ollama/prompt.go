package ollama

func buildClassificationPrompt(sentence string) string {
	const maxSnippet = 2000
	snippet := sentence
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `You review software requirements for ambiguity.
A requirement is Ambiguous when it uses vague quantifiers, subjective adjectives, undefined terms,
unbounded performance words or several possible readings. Otherwise it is Clear.
Return strict JSON object with keys:
label ("Clear" or "Ambiguous"), confidence (number from 0 to 1).
No markdown, no extra keys.

Requirement:
` + snippet
}
