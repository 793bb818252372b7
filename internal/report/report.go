// Package report hosts admin dashboard reports. A report is a named
// generator that fills a Report for a date range.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrUnknownReport = errors.New("unknown report")

type Point struct {
	X string `json:"x"` // YYYY-MM-DD
	Y int64  `json:"y"`
}

type Report struct {
	Type       string    `json:"type"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	CategoryID *int64    `json:"category_id,omitempty"`
	Data       []Point   `json:"data"`
	Total      int64     `json:"total"`
	Prev30Days int64     `json:"prev30Days"`
}

type Generator func(ctx context.Context, r *Report) error

type Registry struct {
	mu     sync.RWMutex
	gens   map[string]Generator
	global []string
}

func NewRegistry() *Registry {
	return &Registry{gens: make(map[string]Generator)}
}

func (r *Registry) Add(name string, gen Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gens[name] = gen
}

// AddGlobal lists a registered report on the admin dashboard.
func (r *Registry) AddGlobal(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.global {
		if g == name {
			return
		}
	}
	r.global = append(r.global, name)
}

func (r *Registry) Global() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.global...)
}

type Params struct {
	Start      time.Time
	End        time.Time
	CategoryID *int64
}

func (r *Registry) Run(ctx context.Context, name string, p Params) (*Report, error) {
	r.mu.RLock()
	gen, ok := r.gens[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownReport, name)
	}
	rep := &Report{Type: name, StartDate: p.Start, EndDate: p.End, CategoryID: p.CategoryID, Data: []Point{}}
	if err := gen(ctx, rep); err != nil {
		return nil, fmt.Errorf("report %s: %w", name, err)
	}
	return rep, nil
}
