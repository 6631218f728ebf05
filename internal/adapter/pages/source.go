// Package pages serves teletext page content with simulated broadcast
// latency.
package pages

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"telehaunt/internal/domain"
	"telehaunt/internal/usecase/cancel"
)

// Page numbers run from FirstPage to LastPage inclusive.
const (
	FirstPage = 100
	LastPage  = 899
)

// maxPagesFileSize is the maximum allowed pages file size (1 MiB).
const maxPagesFileSize = 1 << 20

//go:embed pages.yaml
var builtin []byte

// Page is one teletext page.
type Page struct {
	Number int    `yaml:"number"`
	Title  string `yaml:"title"`
	Body   string `yaml:"body"`
}

// Text is the title and body as displayed.
func (p Page) Text() string {
	body := strings.TrimRight(p.Body, "\n")
	if p.Title == "" {
		return body
	}
	return fmt.Sprintf("P%d %s\n\n%s", p.Number, p.Title, body)
}

type document struct {
	Pages []Page `yaml:"pages"`
}

// Source holds loaded pages and serves them after a configurable delay.
type Source struct {
	clock   domain.Clock
	latency time.Duration
	logger  *slog.Logger

	mu      sync.RWMutex
	pages   map[int]Page
	numbers []int // sorted
	origin  string
}

// NewSource creates an empty source. A nil logger falls back to
// slog.Default().
func NewSource(clock domain.Clock, latency time.Duration, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		clock:   clock,
		latency: latency,
		logger:  logger,
		pages:   make(map[int]Page),
	}
}

// LoadEmbedded loads the built-in pages.
func (s *Source) LoadEmbedded() error {
	return s.Load(builtin, "embedded")
}

// LoadFile loads pages from a YAML file.
func (s *Source) LoadFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat pages file %s: %w", path, err)
	}
	if info.Size() > maxPagesFileSize {
		return fmt.Errorf("pages file %s too large (%d bytes, max %d)", path, info.Size(), maxPagesFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pages file %s: %w", path, err)
	}
	return s.Load(data, path)
}

// Load parses a YAML pages document and replaces the current pages. On
// error the previous pages stay loaded.
func (s *Source) Load(data []byte, origin string) error {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse pages %s: %w", origin, err)
	}
	if len(doc.Pages) == 0 {
		return fmt.Errorf("parse pages %s: no pages", origin)
	}

	pages := make(map[int]Page, len(doc.Pages))
	numbers := make([]int, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		if p.Number < FirstPage || p.Number > LastPage {
			return fmt.Errorf("parse pages %s: page number %d outside %d-%d", origin, p.Number, FirstPage, LastPage)
		}
		if _, exists := pages[p.Number]; exists {
			return fmt.Errorf("parse pages %s: duplicate page %d", origin, p.Number)
		}
		pages[p.Number] = p
		numbers = append(numbers, p.Number)
	}
	slices.Sort(numbers)

	s.mu.Lock()
	s.pages = pages
	s.numbers = numbers
	s.origin = origin
	s.mu.Unlock()

	s.logger.Info("pages loaded", "origin", origin, "count", len(numbers))
	return nil
}

// Fetch returns page n after the source latency. It gives up with the
// context's error if ctx ends first.
func (s *Source) Fetch(ctx context.Context, n int) (Page, error) {
	if err := s.wait(ctx); err != nil {
		return Page{}, err
	}

	s.mu.RLock()
	p, ok := s.pages[n]
	s.mu.RUnlock()
	if !ok {
		return Page{}, domain.NewSubSystemError("pages", "Source.Fetch", domain.ErrNotFound, fmt.Sprintf("page %d", n))
	}
	return p, nil
}

// wait blocks for the broadcast latency. A cancelled ctx fails with an
// error matching both domain.ErrCancelled and ctx.Err().
func (s *Source) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	_, err := cancel.Sleep(ctx, s.clock, s.latency).Wait()
	return err
}

// Numbers returns the loaded page numbers in ascending order.
func (s *Source) Numbers() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.numbers)
}

// Len returns how many pages are loaded.
func (s *Source) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.numbers)
}

// Origin names where the pages were loaded from.
func (s *Source) Origin() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.origin
}

// Next returns the first loaded page after n, wrapping to the first page.
// It returns n when nothing is loaded.
func (s *Source) Next(n int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.numbers) == 0 {
		return n
	}
	i, found := slices.BinarySearch(s.numbers, n)
	if found {
		i++
	}
	if i >= len(s.numbers) {
		return s.numbers[0]
	}
	return s.numbers[i]
}

// Prev returns the last loaded page before n, wrapping to the last page.
// It returns n when nothing is loaded.
func (s *Source) Prev(n int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.numbers) == 0 {
		return n
	}
	i, _ := slices.BinarySearch(s.numbers, n)
	if i == 0 {
		return s.numbers[len(s.numbers)-1]
	}
	return s.numbers[i-1]
}
