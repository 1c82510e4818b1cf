package providers

import "strings"

// ProviderRef is one parsed entry of a provider list. Name selects the
// backend and KeyAlias optionally selects a credential or model alias,
// e.g. "openai:research" reads ARXIVRAG_OPENAI_KEY_RESEARCH.
type ProviderRef struct {
	Raw      string
	Name     string
	KeyAlias string
}

// ParseProviderList splits a config value like "ollama:nomic|mock" into
// ordered refs. Blank entries are dropped; an empty list yields the mock
// provider so a bare environment still embeds deterministically.
func ParseProviderList(raw string) []ProviderRef {
	parts := strings.Split(raw, "|")
	out := make([]ProviderRef, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ref := ProviderRef{Raw: part, Name: part}
		if name, alias, ok := strings.Cut(part, ":"); ok {
			ref.Name = strings.TrimSpace(name)
			ref.KeyAlias = strings.TrimSpace(alias)
		}
		out = append(out, ref)
	}
	if len(out) == 0 {
		out = append(out, ProviderRef{Raw: "mock", Name: "mock"})
	}
	return out
}
