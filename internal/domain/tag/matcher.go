package tag

import "strings"

// Apply runs every rule against an operation's label and complementary
// information and returns the matching rules as snapshots. Rules are
// applied in the order given; each contributes at most one snapshot. The
// result is never nil so the stored tags column is always a JSON array.
func Apply(rules []Tag, libelle, informations string) []AppliedTag {
	applied := make([]AppliedTag, 0)

	haystack := strings.ToLower(libelle + " " + informations)

	for _, rule := range rules {
		for _, token := range strings.Split(rule.Valeur, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(token)) {
				applied = append(applied, AppliedTag{Cle: rule.Cle, Valeur: rule.Valeur})
				break
			}
		}
	}

	return applied
}
