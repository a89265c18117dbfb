package analysis

// Prompts holds the instruction texts sent ahead of a document.
type Prompts struct {
	// Collection names the knowledge collection, e.g. "#Treatment_Protocols\n".
	Collection string
	Final      string
	Temporary  string
	Summary    string
}

// Build returns the full prompt for a document.
func (p Prompts) Build(kind Kind, document string) string {
	instructions := p.Final
	if kind == KindTemporary && p.Temporary != "" {
		instructions = p.Temporary
	}
	return p.Collection + instructions + document
}

// BuildSummary returns the follow-up prompt for a finished response.
func (p Prompts) BuildSummary(response string) string {
	return p.Summary + response + "\n\n"
}
