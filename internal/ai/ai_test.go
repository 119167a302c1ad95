package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenith/internal/core"
	"zenith/internal/metrics"
)

type fakeGen struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	calls   []Request
}

func (f *fakeGen) Generate(_ context.Context, req Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.calls)
	f.calls = append(f.calls, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.answers) {
		return f.answers[i], nil
	}
	return "", errors.New("no scripted answer")
}

var cats = core.DefaultCategories()

func TestSuggestValidatesAgainstType(t *testing.T) {
	cases := []struct {
		answer string
		typ    core.TransactionType
		wantID string
		err    error
	}{
		{"Supermercado", core.Expense, "cat_expense_groceries", nil},
		{"  \"restaurantes/lanches\".\n", core.Expense, "cat_expense_dining_out", nil},
		{"```\nTransporte\n```", core.Expense, "cat_expense_transport", nil},
		{"The best fit is Saúde", core.Expense, "cat_expense_healthcare", nil},
		{"Salário", core.Expense, "", ErrUnusableSuggestion}, // wrong type
		{"Pets", core.Expense, "", ErrUnusableSuggestion},
		{"Freelance", core.Income, "cat_income_freelance", nil},
	}
	for _, tc := range cases {
		gen := &fakeGen{answers: []string{tc.answer}}
		s := NewSuggester(gen, WithBackoff(0))
		got, err := s.Suggest(context.Background(), "something "+tc.answer, cats, tc.typ)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, tc.answer)
			continue
		}
		require.NoError(t, err, tc.answer)
		assert.Equal(t, tc.wantID, got.CategoryID, tc.answer)
	}
}

func TestSuggestPromptListsOnlyRequestedType(t *testing.T) {
	gen := &fakeGen{answers: []string{"Compras"}}
	s := NewSuggester(gen)
	_, err := s.Suggest(context.Background(), "New shoes", cats, core.Expense)
	require.NoError(t, err)
	prompt := gen.calls[0].Turns[0].Text
	assert.Contains(t, prompt, "Compras")
	assert.Contains(t, prompt, "New shoes")
	assert.NotContains(t, prompt, "Salário")
}

func TestSuggestRetriesTransientOnce(t *testing.T) {
	gen := &fakeGen{
		errs:    []error{context.DeadlineExceeded},
		answers: []string{"", "Supermercado"},
	}
	s := NewSuggester(gen, WithBackoff(time.Millisecond))
	got, err := s.Suggest(context.Background(), "weekly shop", cats, core.Expense)
	require.NoError(t, err)
	assert.Equal(t, "Supermercado", got.Name)
	assert.Len(t, gen.calls, 2)
}

func TestSuggestSurfacesSecondFailure(t *testing.T) {
	gen := &fakeGen{errs: []error{context.DeadlineExceeded, context.DeadlineExceeded}}
	s := NewSuggester(gen, WithBackoff(time.Millisecond))
	_, err := s.Suggest(context.Background(), "weekly shop", cats, core.Expense)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, gen.calls, 2)
}

func TestSuggestDoesNotRetryPermanentErrors(t *testing.T) {
	gen := &fakeGen{errs: []error{errors.New("invalid api key")}}
	s := NewSuggester(gen, WithBackoff(time.Millisecond))
	_, err := s.Suggest(context.Background(), "weekly shop", cats, core.Expense)
	assert.Error(t, err)
	assert.Len(t, gen.calls, 1)
}

func TestSuggestCaches(t *testing.T) {
	gen := &fakeGen{answers: []string{"Supermercado"}}
	s := NewSuggester(gen)
	ctx := context.Background()
	_, err := s.Suggest(ctx, "Weekly  Shop", cats, core.Expense)
	require.NoError(t, err)
	got, err := s.Suggest(ctx, "weekly shop", cats, core.Expense)
	require.NoError(t, err)
	assert.Equal(t, "cat_expense_groceries", got.CategoryID)
	assert.Len(t, gen.calls, 1)
}

func TestSuggestInputErrors(t *testing.T) {
	s := NewSuggester(&fakeGen{})
	_, err := s.Suggest(context.Background(), "   ", cats, core.Expense)
	assert.ErrorIs(t, err, ErrEmptyDescription)

	_, err = NewSuggester(nil).Suggest(context.Background(), "x", cats, core.Expense)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSequencerDropsStaleResponses(t *testing.T) {
	seq := NewSequencer()
	assert.True(t, seq.Begin("form-1", 1))
	assert.True(t, seq.Begin("form-1", 2))
	assert.False(t, seq.Begin("form-1", 1), "older request arriving late")

	assert.False(t, seq.Current("form-1", 1))
	assert.True(t, seq.Current("form-1", 2))
	assert.True(t, seq.Current("other", 7), "unknown sessions are never stale")
}

func TestAssistantAsk(t *testing.T) {
	gen := &fakeGen{answers: []string{"  You saved 73%.  "}}
	a := NewAssistant(gen)

	history := make([]Turn, 0, 30)
	for i := 0; i < 30; i++ {
		history = append(history, Turn{Role: RoleUser, Text: "q"})
	}
	view := metrics.Dashboard(nil, cats, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	answer, err := a.Ask(context.Background(), history, "How am I doing?", view)
	require.NoError(t, err)
	assert.Equal(t, "You saved 73%.", answer)

	req := gen.calls[0]
	assert.Len(t, req.Turns, MaxHistory+1)
	assert.Equal(t, "How am I doing?", req.Turns[len(req.Turns)-1].Text)
	assert.True(t, strings.Contains(req.System, "Savings rate"))

	_, err = a.Ask(context.Background(), nil, " ", view)
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	_, err = NewAssistant(nil).Ask(context.Background(), nil, "hi", view)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(context.DeadlineExceeded))
	assert.False(t, Transient(context.Canceled))
	assert.False(t, Transient(nil))
	assert.False(t, Transient(errors.New("boom")))
}
