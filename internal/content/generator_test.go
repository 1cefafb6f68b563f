package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailShape(t *testing.T) {
	g := New(42)
	for range 20 {
		c := g.Email("Jane Doe", "Bob Smith")

		assert.NotEmpty(t, c.Subject)
		assert.True(t, strings.HasPrefix(c.Body, "Hi Bob,\n\n"))
		assert.True(t, strings.HasSuffix(c.Body, "\nJane Doe"))
		assert.NotContains(t, c.Body, "http")
		assert.NotContains(t, c.Body, "<")
		assert.NotContains(t, c.Body, "{", "placeholders are always filled")
	}
}

func TestEmailRandomGreetingWhenNameUnknown(t *testing.T) {
	c := New(7).Email("Jane", "")
	first := strings.SplitN(c.Body, "\n", 2)[0]
	assert.True(t, strings.HasPrefix(first, "Hi "))
	assert.True(t, strings.HasSuffix(first, ","))
	assert.Greater(t, len(first), len("Hi ,"))
}

func TestEmailDeterministicForSeed(t *testing.T) {
	assert.Equal(t, New(99).Email("A", "B"), New(99).Email("A", "B"))
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Update on the proposal", ReplySubject("Update on the proposal"))
	assert.Equal(t, "RE: hello", ReplySubject("RE: hello"))
	assert.Equal(t, "re: hello", ReplySubject("re: hello"))
}

func TestReplyQuotesAtMostFourLines(t *testing.T) {
	g := New(11)
	snippet := "one\ntwo\nthree\nfour\nfive\nsix"
	quotedSeen := false
	for range 40 {
		c := g.Reply("Jane", "Pat Lee", "Checking in about Q4 planning", snippet)
		assert.Equal(t, "Re: Checking in about Q4 planning", c.Subject)
		assert.True(t, strings.HasPrefix(c.Body, "Hi Pat,"))

		n := strings.Count(c.Body, "\n> ")
		if n > 0 {
			quotedSeen = true
			assert.Equal(t, 4, n)
			assert.NotContains(t, c.Body, "> five")
		}
	}
	assert.True(t, quotedSeen, "about half of replies quote the original")
}

func TestRecipientsAreUniqueAndActive(t *testing.T) {
	rs := New(5).Recipients(50)
	require.NotEmpty(t, rs)

	seen := map[string]bool{}
	for _, r := range rs {
		assert.False(t, seen[r.Email], "duplicate %s", r.Email)
		seen[r.Email] = true
		assert.True(t, r.Active)
		assert.Contains(t, r.Email, "@")
		assert.Equal(t, r.Domain, r.Email[strings.Index(r.Email, "@")+1:])
		assert.Len(t, strings.Fields(r.Name), 2)
	}
}
