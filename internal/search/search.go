// Package search parses topic search terms. Plugins register advanced
// filters: a regexp matched against each word of the term and a function
// that narrows the store query when the word matches.
package search

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/tazhibayda/expired-service/internal/domain"
)

type Filter func(q *domain.TopicQuery)

type advancedFilter struct {
	re *regexp.Regexp
	fn Filter
}

type Registry struct {
	mu      sync.RWMutex
	filters []advancedFilter
}

func NewRegistry() *Registry { return &Registry{} }

func (r *Registry) AdvancedFilter(re *regexp.Regexp, fn Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, advancedFilter{re: re, fn: fn})
}

// Parse consumes words matched by a filter and keeps the rest as free text.
// The first matching filter wins for a given word.
func (r *Registry) Parse(term string) domain.TopicQuery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var q domain.TopicQuery
	rest := make([]string, 0, 4)
	for _, w := range strings.Fields(term) {
		matched := false
		for _, f := range r.filters {
			if f.re.MatchString(w) {
				f.fn(&q)
				matched = true
				break
			}
		}
		if !matched {
			rest = append(rest, w)
		}
	}
	q.Term = strings.Join(rest, " ")
	return q
}

type Service struct {
	Store    domain.TopicStore
	Registry *Registry
}

func (s *Service) Search(ctx context.Context, term string, categoryID *int64, limit int) ([]domain.Topic, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.Registry.Parse(term)
	q.CategoryID = categoryID
	q.Limit = limit
	return s.Store.SearchTopics(ctx, q)
}
