package repository

import (
	"fmt"
	"strings"
	"unicode"
)

// visibleClause renders the shared visibility predicate for scoped items
// (announcements, media). An item is visible to the viewer ($argIdx) when
// its scope is 'all', the viewer owns it, a user target names the viewer,
// or a group target lands in one of the viewer's groups (user_groups
// view). Kept as a set-membership EXISTS so listings stay index-driven.
func visibleClause(alias, targetTable, fkCol, ownerCol string, argIdx int) string {
	return fmt.Sprintf(`(%[1]s.scope = 'all' OR %[1]s.%[2]s = $%[5]d`+
		` OR EXISTS (SELECT 1 FROM %[3]s t WHERE t.%[4]s = %[1]s.id AND t.target_type = 'user' AND t.user_id = $%[5]d)`+
		` OR EXISTS (SELECT 1 FROM %[3]s t JOIN user_groups ug ON ug.group_id = t.group_id AND ug.user_id = $%[5]d WHERE t.%[4]s = %[1]s.id AND t.target_type = 'group'))`,
		alias, ownerCol, targetTable, fkCol, argIdx)
}

// searchTerms converts a free-text query into a prefix-matching tsquery
// ("tok1:* & tok2:*", all tokens required) plus an escaped ILIKE pattern
// used as a substring fallback. Anything that is not a letter or digit
// acts as a token separator, so tsquery operators and punctuation can
// never reach to_tsquery.
func searchTerms(term string) (tsquery, like string) {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, term)

	fields := strings.Fields(normalized)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, f+":*")
	}
	tsquery = strings.Join(tokens, " & ")

	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
	like = "%" + escaped + "%"
	return tsquery, like
}
