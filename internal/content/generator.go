// Package content writes warm-up email text. Messages are plain text
// with no links, and the output varies from message to message.
package content

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// Content is a generated subject and plain-text body.
type Content struct {
	Subject string
	Body    string
}

// Generator produces email text. It is safe for concurrent use.
type Generator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	fake *gofakeit.Faker

	// MinWords and MaxWords bound the body length of a fresh message.
	MinWords, MaxWords int
}

// New returns a Generator. A zero seed draws a random one.
func New(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		fake:     gofakeit.New(seed),
		MinWords: 80,
		MaxWords: 250,
	}
}

func pick(r *rand.Rand, list []string) string {
	return list[r.IntN(len(list))]
}

func (g *Generator) intRange(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

// Subject returns a random subject line.
func (g *Generator) Subject() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subject()
}

func (g *Generator) subject() string {
	return fmt.Sprintf(pick(g.rng, subjectTemplates), pick(g.rng, topics))
}

func (g *Generator) sentence() string {
	s := pick(g.rng, sentences)
	if !strings.Contains(s, "{") {
		return s
	}
	return strings.NewReplacer(
		"{name}", g.fake.FirstName(),
		"{company}", g.fake.Company(),
		"{day}", g.fake.WeekDay(),
		"{city}", g.fake.City(),
	).Replace(s)
}

func (g *Generator) greetingName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return g.fake.FirstName()
}

// Email writes a new outreach message from senderName to recipientName.
// An empty recipient name is replaced by a random first name.
func (g *Generator) Email(senderName, recipientName string) Content {
	g.mu.Lock()
	defer g.mu.Unlock()

	lo, hi := g.MinWords, g.MaxWords
	if lo <= 0 || hi < lo {
		lo, hi = 80, 250
	}
	target := g.intRange(lo, hi)

	var paragraphs []string
	words := 0
	for words < target && len(paragraphs) < 3 {
		parts := []string{pick(g.rng, paragraphStarters) + " " + pick(g.rng, topics) + "."}
		for range g.intRange(1, 3) {
			parts = append(parts, g.sentence())
		}
		p := strings.Join(parts, " ")
		paragraphs = append(paragraphs, p)
		words += len(strings.Fields(p))
	}

	lines := []string{
		"Hi " + g.greetingName(recipientName) + ",",
		"",
		pick(g.rng, openers),
		"",
	}
	for _, p := range paragraphs {
		lines = append(lines, p, "")
	}
	lines = append(lines,
		pick(g.rng, closers),
		"",
		pick(g.rng, signOffs),
		senderName,
	)

	return Content{Subject: g.subject(), Body: strings.Join(lines, "\n")}
}

// ReplySubject prefixes subject with "Re: " unless it already has one.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(subject)), "re:") {
		return subject
	}
	return "Re: " + subject
}

// Reply writes a short answer to a received message, quoting up to four
// lines of the original about half of the time.
func (g *Generator) Reply(senderName, recipientName, originalSubject, snippet string) Content {
	g.mu.Lock()
	defer g.mu.Unlock()

	body := make([]string, 0, 3)
	for range g.intRange(1, 3) {
		body = append(body, g.sentence())
	}

	lines := []string{
		"Hi " + g.greetingName(recipientName) + ",",
		"",
		pick(g.rng, replyOpeners),
		"",
		strings.Join(body, " "),
		"",
		pick(g.rng, closers),
		"",
		pick(g.rng, signOffs),
		senderName,
	}

	if snippet = strings.TrimSpace(snippet); snippet != "" && g.rng.Float64() < 0.5 {
		quoted := strings.Split(snippet, "\n")
		if len(quoted) > 4 {
			quoted = quoted[:4]
		}
		lines = append(lines, "", "---")
		for _, l := range quoted {
			lines = append(lines, "> "+strings.TrimRight(l, "\r"))
		}
	}

	subject := originalSubject
	if strings.TrimSpace(subject) == "" {
		subject = g.subject()
	}
	return Content{Subject: ReplySubject(subject), Body: strings.Join(lines, "\n")}
}

// Recipients generates n synthetic addresses of the form
// first.last@domain with matching display names.
func (g *Generator) Recipients(n int) []model.Recipient {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[string]bool, n)
	out := make([]model.Recipient, 0, n)
	for attempts := 0; len(out) < n && attempts < n*3; attempts++ {
		first, last := g.fake.FirstName(), g.fake.LastName()
		domain := strings.ToLower(g.fake.DomainName())
		addr := strings.ToLower(localPart(first)+"."+localPart(last)) + "@" + domain
		if seen[addr] {
			continue
		}
		seen[addr] = true
		r := model.NewRecipient(addr, first+" "+last)
		out = append(out, r)
	}
	return out
}

// localPart keeps the characters of s that are safe in an address.
func localPart(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}
