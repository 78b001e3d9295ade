package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibleClause(t *testing.T) {
	clause := visibleClause("a", "announcement_targets", "announcement_id", "author_user_id", 3)

	assert.Contains(t, clause, "a.scope = 'all'")
	assert.Contains(t, clause, "a.author_user_id = $3")
	assert.Contains(t, clause, "t.target_type = 'user' AND t.user_id = $3")
	assert.Contains(t, clause, "JOIN user_groups ug ON ug.group_id = t.group_id AND ug.user_id = $3")
	assert.Contains(t, clause, "FROM announcement_targets t")
	assert.Contains(t, clause, "t.announcement_id = a.id")
}

func TestSearchTerms(t *testing.T) {
	tsquery, like := searchTerms("field trip")
	assert.Equal(t, "field:* & trip:*", tsquery)
	assert.Equal(t, "%field trip%", like)
}

func TestSearchTermsEscapesLikeWildcards(t *testing.T) {
	tsquery, like := searchTerms("100%_done")
	assert.Equal(t, "100:* & done:*", tsquery)
	assert.Equal(t, `%100\%\_done%`, like)
}

func TestSearchTermsStripsOperatorCharacters(t *testing.T) {
	tsquery, _ := searchTerms(`"quoted" -neg ***`)
	assert.Equal(t, "quoted:* & neg:*", tsquery)
}

func TestSearchTermsSplitsEmbeddedPunctuation(t *testing.T) {
	tsquery, like := searchTerms("hello:world")
	assert.Equal(t, "hello:* & world:*", tsquery)
	assert.Equal(t, "%hello:world%", like)

	tsquery, _ = searchTerms("a&b|c!(d)")
	assert.Equal(t, "a:* & b:* & c:* & d:*", tsquery)

	tsquery, _ = searchTerms("!!! ???")
	assert.Empty(t, tsquery)
}
