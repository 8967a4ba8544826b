package limiter

import "strings"

// resourceFamilies maps known model-family prefixes to the canonical class
// every variant collapses to. Order matters: longer prefixes first, so
// "gpt-4-turbo" hits "gpt-4" before any shorter overlap could.
var resourceFamilies = []struct {
	prefix    string
	canonical ResourceClass
}{
	{"gpt-4", ClassGPT4},
	{"gpt-3.5", ClassGPT35},
	{"claude-3", ClassClaude3},
}

// Canonical collapses family variants to one class name: every class sharing
// a known family prefix maps to that family's canonical class, anything else
// passes through unchanged. Pure and total.
func (c ResourceClass) Canonical() ResourceClass {
	for _, fam := range resourceFamilies {
		if strings.HasPrefix(string(c), fam.prefix) {
			return fam.canonical
		}
	}
	return c
}

// LookupName is the configuration lookup form of the canonical class:
// separators ('-', '.') become '_' and the result is uppercased, so
// "gpt-3.5-turbo" becomes "GPT_3_5_TURBO".
func (c ResourceClass) LookupName() string {
	name := string(c.Canonical())
	name = strings.NewReplacer("-", "_", ".", "_").Replace(name)
	return strings.ToUpper(name)
}

// storageKey derives the record key for a (user, class) pair. Equal inputs
// always yield equal keys; concurrent readers and writers depend on that.
func storageKey(prefix, userID string, class ResourceClass) string {
	return prefix + userID + ":" + class.LookupName()
}
