package model

import "strings"

// PromptVariant is one named prompt template under comparison.
type PromptVariant struct {
	Name string
	Text string
}

// FileToken makes the variant name safe to embed in a file name.
func (p PromptVariant) FileToken() string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(p.Name)
}

// Evaluation is the service's ranking of prompt variants.
type Evaluation struct {
	Text         string
	TopTemplates []string
	Reused       bool
}
