package parser

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Taxonomy maps free-form candidate tags onto a fixed set of category
// buckets via keyword-substring matching. It is configuration, not control
// flow: the default table targets Russian, and a YAML file can replace it
// wholesale for other languages.
type Taxonomy struct {
	Categories []Category `yaml:"categories"`
	// UrgentTag is the marker that drives the deterministic priority rule
	// in the multi-stage pipeline.
	UrgentTag string `yaml:"urgent_tag"`
	// MaxTags caps the standardized set. Callers must not depend on tag
	// ordering beyond this cap.
	MaxTags int `yaml:"max_tags"`
}

type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Categories: []Category{
			{Name: "встреча", Keywords: []string{"встреча", "митинг", "встретиться", "познакомиться"}},
			{Name: "звонок", Keywords: []string{"звонить", "позвонить", "созвон", "звонила"}},
			{Name: "документы", Keywords: []string{"документ", "драфт", "договор", "юрлицо"}},
			{Name: "решение", Keywords: []string{"решить", "определить", "принять решение"}},
			{Name: "проверка", Keywords: []string{"проверить", "статус", "обсудить"}},
			{Name: "срочно", Keywords: []string{"дедлайн", "пятница", "понедельник", "завтра", "сегодня"}},
			{Name: "важно", Keywords: []string{"критично", "обязательно", "приоритет"}},
		},
		UrgentTag: "срочно",
		MaxTags:   5,
	}
}

func LoadTaxonomy(path string) (Taxonomy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, err
	}
	var t Taxonomy
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("parse taxonomy: %w", err)
	}
	if len(t.Categories) == 0 {
		return Taxonomy{}, fmt.Errorf("taxonomy has no categories")
	}
	if t.MaxTags <= 0 {
		t.MaxTags = 5
	}
	return t, nil
}

// Standardize merges model-proposed tags and extracted entities into the
// fixed taxonomy: a tag matching a category keyword becomes the category
// name; an unmatched tag survives unless it duplicates an entity; entities
// are unioned in with short names upper-cased (acronyms). The union is
// truncated to MaxTags.
func (t Taxonomy) Standardize(rawTags, entities []string) []string {
	max := t.MaxTags
	if max <= 0 {
		max = 5
	}

	entitySet := map[string]bool{}
	for _, e := range entities {
		entitySet[e] = true
	}

	out := make([]string, 0, max)
	seen := map[string]bool{}
	add := func(tag string) {
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}

	for _, tag := range rawTags {
		tag = strings.TrimSpace(tag)
		if len([]rune(tag)) <= 2 {
			continue
		}
		lower := strings.ToLower(tag)
		matched := false
		for _, cat := range t.Categories {
			for _, kw := range cat.Keywords {
				if strings.Contains(lower, kw) {
					add(cat.Name)
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		// Unmatched but meaningful tags survive unless they just repeat
		// an entity, which gets its own normalization below.
		if !matched && !entitySet[tag] {
			add(tag)
		}
	}

	for _, entity := range entities {
		entity = strings.TrimSpace(entity)
		if len([]rune(entity)) <= 2 {
			continue
		}
		if len([]rune(entity)) <= 5 {
			entity = strings.ToUpper(entity)
		}
		add(entity)
	}

	if len(out) > max {
		out = out[:max]
	}
	return out
}
