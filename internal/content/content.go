package content

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"deskseed/internal/domain"
)

//go:embed corpus.yaml
var defaultCorpus []byte

// Corpus keys.
const (
	Titles             = "titles"
	Details            = "details"
	Prefixes           = "prefixes"
	Suffixes           = "suffixes"
	AnalystComments    = "analyst_comments"
	AnalystFollowups   = "analyst_followups"
	ResolutionComments = "resolution_comments"
	UserComments       = "user_comments"
	ClosureComments    = "closure_comments"
	LockReasons        = "lock_reasons"
)

// ErrEmpty is returned when a corpus key has no entries.
var ErrEmpty = errors.New("corpus is empty")

// Picker is the random source used for selection.
type Picker interface {
	IntN(n int) int
}

// Corpus holds the text fragments used to fill generated content.
type Corpus struct {
	Lists    map[string][]string
	Articles []domain.Article
}

type corpusFile struct {
	Articles []struct {
		Topic    string   `yaml:"topic"`
		Content  string   `yaml:"content"`
		Keywords []string `yaml:"keywords"`
	} `yaml:"articles"`
}

// Default returns the embedded corpus.
func Default() *Corpus {
	c, err := FromYAML(defaultCorpus)
	if err != nil {
		panic(fmt.Sprintf("embedded corpus: %v", err))
	}
	return c
}

// FromYAML parses a corpus document. Every top-level key except "articles"
// must map to a list of strings.
func FromYAML(data []byte) (*Corpus, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse corpus: %w", err)
	}
	c := &Corpus{Lists: map[string][]string{}}
	for key, node := range raw {
		if key == "articles" {
			continue
		}
		var items []string
		if err := node.Decode(&items); err != nil {
			return nil, fmt.Errorf("corpus key %s: %w", key, err)
		}
		c.Lists[key] = items
	}
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse corpus articles: %w", err)
	}
	for _, a := range f.Articles {
		c.Articles = append(c.Articles, domain.Article{Topic: a.Topic, Content: a.Content, Keywords: a.Keywords})
	}
	return c, nil
}

// Selector draws random fragments from a Corpus.
type Selector struct {
	Corpus *Corpus
	Rand   Picker
}

func NewSelector(c *Corpus, r Picker) Selector {
	return Selector{Corpus: c, Rand: r}
}

// Pick returns a uniformly random entry for key.
func (s Selector) Pick(key string) (string, error) {
	items := s.Corpus.Lists[key]
	if len(items) == 0 {
		return "", fmt.Errorf("%s: %w", key, ErrEmpty)
	}
	return items[s.Rand.IntN(len(items))], nil
}

// PickOr returns a random entry for key, or fallback when the key is empty.
func (s Selector) PickOr(key, fallback string) string {
	v, err := s.Pick(key)
	if err != nil {
		return fallback
	}
	return v
}

// Render substitutes {name} placeholders in tmpl.
func Render(tmpl string, vars map[string]string) string {
	for k, v := range vars {
		tmpl = strings.ReplaceAll(tmpl, "{"+k+"}", v)
	}
	return tmpl
}

// Description builds a ticket description: a prefix addressed by the
// creator, a detail body and a closing suffix.
func (s Selector) Description(displayName string) (string, error) {
	prefix, err := s.Pick(Prefixes)
	if err != nil {
		return "", err
	}
	detail, err := s.Pick(Details)
	if err != nil {
		return "", err
	}
	suffix, err := s.Pick(Suffixes)
	if err != nil {
		return "", err
	}
	return Render(prefix, map[string]string{"username": displayName}) + detail + suffix, nil
}

// Articles returns the knowledge-base article corpus.
func (s Selector) Articles() []domain.Article {
	return s.Corpus.Articles
}
