package headers

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"golang.org/x/text/language"
)

// Header names produced by Random.
const (
	UserAgent      = "User-Agent"
	AcceptLanguage = "Accept-Language"
	AcceptEncoding = "Accept-Encoding"
	Accept         = "Accept"
	Referer        = "Referer"
)

// DefaultUserAgents are recent desktop and mobile browser user agents.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:132.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:132.0) Gecko/20100101 Firefox/132.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 18_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Mobile Safari/537.36",
}

// DefaultLanguages are the locales Accept-Language is built from.
var DefaultLanguages = []language.Tag{
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Spanish,
	language.Italian,
	language.Japanese,
	language.Dutch,
}

// DefaultReferers are search engine landing pages.
var DefaultReferers = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://duckduckgo.com/",
	"https://search.yahoo.com/",
}

var accepts = []string{
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
	"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
}

const acceptEncoding = "gzip, deflate, br"

// Generator produces randomized header sets. It is safe for concurrent use.
type Generator struct {
	mu         sync.Mutex
	rng        *rand.Rand
	userAgents []string
	languages  []language.Tag
	referers   []string
	fixed      map[string]string
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes the generator deterministic.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithUserAgents replaces the user agent pool.
func WithUserAgents(agents ...string) Option {
	return func(g *Generator) {
		if len(agents) > 0 {
			g.userAgents = agents
		}
	}
}

// WithLanguages replaces the locale pool.
func WithLanguages(tags ...language.Tag) Option {
	return func(g *Generator) {
		if len(tags) > 0 {
			g.languages = tags
		}
	}
}

// WithFixed sets headers that are added to every generated set,
// overriding generated values with the same name.
func WithFixed(headers map[string]string) Option {
	return func(g *Generator) {
		g.fixed = headers
	}
}

// New creates a Generator with the default pools.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		userAgents: DefaultUserAgents,
		languages:  DefaultLanguages,
		referers:   DefaultReferers,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ParseLanguages parses BCP 47 tags such as "en-US" or "de".
func ParseLanguages(tags []string) ([]language.Tag, error) {
	out := make([]language.Tag, 0, len(tags))
	for _, s := range tags {
		tag, err := language.Parse(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", s, err)
		}
		out = append(out, tag)
	}
	return out, nil
}

// Random returns a fresh header set.
func (g *Generator) Random() map[string]string {
	g.mu.Lock()
	ua := g.userAgents[g.rng.IntN(len(g.userAgents))]
	lang := g.languages[g.rng.IntN(len(g.languages))]
	accept := accepts[g.rng.IntN(len(accepts))]
	referer := g.referers[g.rng.IntN(len(g.referers))]
	g.mu.Unlock()

	h := map[string]string{
		UserAgent:      ua,
		AcceptLanguage: AcceptLanguageFor(lang),
		AcceptEncoding: acceptEncoding,
		Accept:         accept,
		Referer:        referer,
	}
	for k, v := range g.fixed {
		h[k] = v
	}
	return h
}

// AcceptLanguageFor builds an Accept-Language value preferring tag, then
// its base language, then English.
//
//	en-US -> "en-US,en;q=0.9"
//	de-DE -> "de-DE,de;q=0.9,en;q=0.8"
//	fr    -> "fr,en;q=0.9"
func AcceptLanguageFor(tag language.Tag) string {
	parts := []string{tag.String()}

	base, _ := tag.Base()
	if base.String() != tag.String() {
		parts = append(parts, base.String())
	}
	if base.String() != "en" {
		parts = append(parts, "en")
	}

	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			fmt.Fprintf(&b, ",%s;q=0.%d", p, 10-i)
			continue
		}
		b.WriteString(p)
	}
	return b.String()
}
