// Package prefilter decides whether a candidate is worth the expensive checks.
// The lists are deliberately broad: a false negative here is never inspected.
package prefilter

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v2"

	"github.com/iamwavecut/phishguard/internal/moderation"
	"github.com/iamwavecut/phishguard/internal/utils/text"
	"github.com/iamwavecut/phishguard/resources"
)

const listsFile = "prefilter.yml"

type Lists struct {
	Extensions     []string `yaml:"extensions"`
	URLPatterns    []string `yaml:"url_patterns"`
	TriggerPhrases []string `yaml:"trigger_phrases"`
}

type Filter struct {
	extensions map[string]struct{}
	patterns   []*regexp.Regexp
	phrases    []string
}

func LoadLists(fsys fs.FS, name string) (Lists, error) {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return Lists{}, fmt.Errorf("read %s: %w", name, err)
	}
	var lists Lists
	if err := yaml.Unmarshal(raw, &lists); err != nil {
		return Lists{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return lists, nil
}

// NewDefault builds a Filter from the embedded lists.
func NewDefault() (*Filter, error) {
	lists, err := LoadLists(resources.FS, listsFile)
	if err != nil {
		return nil, err
	}
	return New(lists)
}

func New(lists Lists) (*Filter, error) {
	f := &Filter{
		extensions: make(map[string]struct{}, len(lists.Extensions)),
		patterns:   make([]*regexp.Regexp, 0, len(lists.URLPatterns)),
		phrases:    make([]string, 0, len(lists.TriggerPhrases)),
	}
	for _, ext := range lists.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = struct{}{}
	}
	for _, pattern := range lists.URLPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile url pattern %q: %w", pattern, err)
		}
		f.patterns = append(f.patterns, re)
	}
	for _, phrase := range lists.TriggerPhrases {
		if phrase = fold(strings.TrimSpace(phrase)); phrase != "" {
			f.phrases = append(f.phrases, phrase)
		}
	}
	return f, nil
}

// ShouldEscalate reports whether the candidate goes through the full pipeline.
// Admin commands always pass; other admin content is never inspected.
func (f *Filter) ShouldEscalate(c moderation.Candidate, isSenderAdmin bool) bool {
	if isSenderAdmin {
		return c.IsCommand
	}
	if c.Attachment != nil && f.SuspiciousExtension(c.Attachment.Name) {
		return true
	}
	if len(c.URLs) > 0 {
		return true
	}
	if c.Text == "" {
		return false
	}
	for _, re := range f.patterns {
		if re.MatchString(c.Text) {
			return true
		}
	}
	return f.HasTriggerPhrase(c.Text)
}

func (f *Filter) SuspiciousExtension(name string) bool {
	_, ok := f.extensions[strings.ToLower(path.Ext(name))]
	return ok
}

// HasTriggerPhrase matches case-insensitively, also after mixed-script words
// are rewritten with their Latin lookalikes.
func (f *Filter) HasTriggerPhrase(content string) bool {
	folded := fold(content)
	plain := folded
	if text.HasCyrillics(content) {
		plain = fold(text.Delatinize(content))
	}
	for _, phrase := range f.phrases {
		if strings.Contains(folded, phrase) || strings.Contains(plain, phrase) {
			return true
		}
	}
	return false
}

// fold builds a Caser per call: a Caser must not be shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}
