package domain

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type profileKey struct{}

// Span is one timed phase of a run, e.g. "load price cache"
type Span struct {
	Name       string    `json:"name"`
	startTs    time.Time `json:"-"`
	subProfile *Profile  `json:"-"`

	SubSpans []*Span `json:"subSpans,omitempty"`
	Elapsed  *int64  `json:"elapsed"`
}

// Profile is simply a list of spans
type Profile struct {
	mu      sync.Mutex
	Spans   []*Span `json:"spans"`
	startTs time.Time
	TotalMs *int64 `json:"totalMs"`
}

func NewProfile() (newProfile *Profile, endNewProfile func()) {
	newProfile = &Profile{
		Spans:   []*Span{},
		startTs: time.Now(),
	}

	return newProfile, newProfile.End
}

func NewContextWithProfile(ctx context.Context, p *Profile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// GetProfile returns the profile stored in ctx, or a detached one so
// callers never have to nil check
func GetProfile(ctx context.Context) (profile *Profile, endProfile func()) {
	if p, ok := ctx.Value(profileKey{}).(*Profile); ok && p != nil {
		return p, p.End
	}
	return NewProfile()
}

func (p *Profile) End() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.TotalMs == nil {
		t := time.Since(p.startTs).Milliseconds()
		p.TotalMs = &t
	}
}

func NewSpan(name string) (*Span, func()) {
	newSpan := &Span{
		Name:    name,
		startTs: time.Now(),
	}
	return newSpan, newSpan.End
}

func (s *Span) End() {
	if s.Elapsed == nil {
		t := time.Since(s.startTs).Milliseconds()
		s.Elapsed = &t
	}
	if s.subProfile != nil {
		s.SubSpans = s.subProfile.Spans
	}
}

func (p *Profile) AddSpan(s *Span) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Spans = append(p.Spans, s)
}

// StartNewSpan ends the last span and begins a new one
func (p *Profile) StartNewSpan(name string) (newSpan *Span, endSpan func()) {
	newSpan, endSpan = NewSpan(name)
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Spans) > 0 {
		p.Spans[len(p.Spans)-1].End()
	}
	p.Spans = append(p.Spans, newSpan)
	return newSpan, endSpan
}

func (s *Span) NewSubProfile() (*Profile, func()) {
	if s.subProfile != nil {
		return s.subProfile, s.subProfile.End
	}
	newProfile, end := NewProfile()
	s.subProfile = newProfile
	return newProfile, end
}

func (p *Profile) ToJsonBytes() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bytes, err := json.Marshal(p.Spans)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}
