package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zenith/internal/cache"
	"zenith/internal/core"
)

var (
	ErrEmptyDescription = errors.New("description is required for a suggestion")
	// ErrUnusableSuggestion means the model answered with something that is
	// not a category of the requested type.
	ErrUnusableSuggestion = errors.New("model suggested an unknown category")
)

// Suggestion is a validated category proposal.
type Suggestion struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

type Suggester struct {
	gen     Generator
	cache   *cache.LRUCache[Suggestion]
	backoff time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

type SuggesterOption func(*Suggester)

func WithBackoff(d time.Duration) SuggesterOption { return func(s *Suggester) { s.backoff = d } }

// WithTimeout bounds each suggestion, retries included.
func WithTimeout(d time.Duration) SuggesterOption { return func(s *Suggester) { s.timeout = d } }

func WithCache(c *cache.LRUCache[Suggestion]) SuggesterOption {
	return func(s *Suggester) { s.cache = c }
}

func NewSuggester(gen Generator, opts ...SuggesterOption) *Suggester {
	s := &Suggester{
		gen:     gen,
		cache:   cache.NewLRUCache[Suggestion](256, time.Hour),
		backoff: 500 * time.Millisecond,
		timeout: 10 * time.Second,
		logger:  slog.Default().With("component", "ai"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Cache exposes the suggestion cache so it can be registered for cleanup.
func (s *Suggester) Cache() *cache.LRUCache[Suggestion] { return s.cache }

func cacheKey(t core.TransactionType, desc string) string {
	return string(t) + "|" + strings.ToLower(strings.Join(strings.Fields(desc), " "))
}

func buildSuggestPrompt(description string, candidates []core.Category, t core.TransactionType) string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Classify this %s transaction into exactly one of the following categories:\n", strings.ToLower(t.Label()))
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	fmt.Fprintf(&b, "\nTransaction description: %q\n", description)
	b.WriteString("Answer with the category name only, spelled exactly as listed.")
	return b.String()
}

// match finds the candidate the answer names. An exact (case-insensitive)
// match wins; otherwise the answer must mention exactly one candidate.
func match(answer string, candidates []core.Category) (core.Category, bool) {
	norm := strings.ToLower(strings.TrimSpace(answer))
	if norm == "" {
		return core.Category{}, false
	}
	for _, c := range candidates {
		if strings.ToLower(c.Name) == norm {
			return c, true
		}
	}
	var found []core.Category
	for _, c := range candidates {
		if strings.Contains(norm, strings.ToLower(c.Name)) {
			found = append(found, c)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return core.Category{}, false
}

// Suggest asks the model for the category of description among the
// categories of type t. The answer is only returned when it names one of
// those categories. A transient failure is retried once.
func (s *Suggester) Suggest(ctx context.Context, description string, categories []core.Category, t core.TransactionType) (Suggestion, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return Suggestion{}, ErrEmptyDescription
	}
	if !t.Valid() {
		return Suggestion{}, core.ErrInvalidType
	}
	if s.gen == nil {
		return Suggestion{}, ErrUnavailable
	}

	candidates := make([]core.Category, 0, len(categories))
	for _, c := range categories {
		if c.Type == t {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return Suggestion{}, ErrUnusableSuggestion
	}

	key := cacheKey(t, description)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req := Request{
		Turns:       []Turn{{Role: RoleUser, Text: buildSuggestPrompt(description, candidates, t)}},
		Temperature: 0,
	}
	answer, err := s.generateWithRetry(ctx, req)
	if err != nil {
		return Suggestion{}, err
	}

	cat, ok := match(cleanModelText(answer), candidates)
	if !ok {
		s.logger.WarnContext(ctx, "Discarding unusable suggestion", "answer", answer, "type", t)
		return Suggestion{}, fmt.Errorf("%w: %q", ErrUnusableSuggestion, cleanModelText(answer))
	}
	sug := Suggestion{CategoryID: cat.ID, Name: cat.Name}
	s.cache.Set(key, sug)
	return sug, nil
}

func (s *Suggester) generateWithRetry(ctx context.Context, req Request) (string, error) {
	answer, err := s.gen.Generate(ctx, req)
	if err == nil || !Transient(err) {
		return answer, err
	}
	s.logger.WarnContext(ctx, "Suggestion failed, retrying once", "error", err)
	select {
	case <-time.After(s.backoff):
	case <-ctx.Done():
		return "", fmt.Errorf("suggestion retry: %w", ctx.Err())
	}
	return s.gen.Generate(ctx, req)
}
