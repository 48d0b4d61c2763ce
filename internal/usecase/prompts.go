package usecase

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"flashcard-generator/internal/domain"
	"flashcard-generator/internal/domain/model"
)

// DefaultPrompt asks for RemNote-style flashcards covering the whole document.
const DefaultPrompt = `Create a comprehensive set of study flashcards covering all the content in this document.

Break content into Objects - identify all significant concepts, systems, processes or terms. Be thorough and fine-grained with your object identification but each object should still be a discrete THING (Noun). Group related objects together in logical sections when possible.

Question Formatting:

Structure your output as follows:

## [Object Name]

* [Question] == [Answer]
* [Question] == [Answer]
* [Question] == [Answer]

Question Construction RULES:

1. RULE 1 - ATOMIC: Each question should target the smallest meaningful unit of knowledge

2. RULE 2 - DETERMINISTIC: Questions should clearly point to a single specific answer. The answers should be VERY clear from the questions.

After following these rules, ensure your questions collectively cover ALL information in the document. A person who memorizes all answers should understand EVERYTHING in the document. ALL of the information in the document should be turned into questions.

Output Format:

* Use proper Markdown formatting
* Create MANY flashcards - as many as needed to cover everything in the document
* Output only the flashcards and nothing else.
`

const evaluationTemplate = `You are an expert in educational psychology and flashcard creation.
I've generated flashcards using different prompt templates for studying the same material.
Please analyze these flashcards and identify the TOP 3 prompt templates that would be MOST EFFECTIVE
for preparing for a test on this material.

For each prompt template, consider:
1. How well the flashcards cover the key concepts
2. How effectively they test understanding rather than just memorization
3. How well they prepare someone for exam questions
4. The clarity and precision of the questions and answers
5. The organization and structure of the content

Here are the flashcards generated by each prompt template:

%s

Please provide your TOP 3 recommendations in this exact format:
TOP_TEMPLATE_1: [Name of the best template]
TOP_TEMPLATE_2: [Name of the second best template]
TOP_TEMPLATE_3: [Name of the third best template]
REASONING: [Your detailed explanation of why these three templates are best for test preparation]
`

// CompareHeader prefixes every comparison output file.
func CompareHeader(name string) string {
	return fmt.Sprintf("# Flashcards generated with: %s\n\n", name)
}

// EvaluationPrompt embeds the per-template sections into the ranking prompt.
func EvaluationPrompt(sections string) string {
	return fmt.Sprintf(evaluationTemplate, sections)
}

var promptBlock = regexp.MustCompile("(?s)## ([^\n]+)\n```\n(.*?)\n```")

// ParsePrompts extracts "## Title" + fenced-block pairs in file order.
// A repeated title keeps its first position and its last body.
func ParsePrompts(markdown string) []model.PromptVariant {
	markdown = strings.ReplaceAll(markdown, "\r\n", "\n")
	var out []model.PromptVariant
	pos := map[string]int{}
	for _, m := range promptBlock.FindAllStringSubmatch(markdown, -1) {
		name := strings.TrimSpace(m[1])
		text := strings.TrimSpace(m[2])
		if name == "" || text == "" {
			continue
		}
		if i, ok := pos[name]; ok {
			out[i].Text = text
			continue
		}
		pos[name] = len(out)
		out = append(out, model.PromptVariant{Name: name, Text: text})
	}
	return out
}

// LoadPrompts reads and parses a prompts markdown file.
func LoadPrompts(path string) ([]model.PromptVariant, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts %s: %w", path, err)
	}
	variants := ParsePrompts(string(b))
	if len(variants) == 0 {
		return nil, fmt.Errorf("%s: %w", path, domain.ErrNoPrompts)
	}
	return variants, nil
}

// LoadPrompt returns the contents of path, or DefaultPrompt when path is empty.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return DefaultPrompt, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt %s: %w", path, err)
	}
	p := strings.TrimSpace(string(b))
	if p == "" {
		return DefaultPrompt, nil
	}
	return p, nil
}

// ParseTopTemplates reads the "TOP_TEMPLATE_<n>: name" lines, best first.
func ParseTopTemplates(text string) []string {
	var out []string
	for i := 1; i <= 3; i++ {
		marker := fmt.Sprintf("TOP_TEMPLATE_%d: ", i)
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		rest := text[idx+len(marker):]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[:nl]
		}
		if name := strings.TrimSpace(rest); name != "" {
			out = append(out, name)
		}
	}
	return out
}
