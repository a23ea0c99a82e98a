package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/brandflow/internal/config"
)

type fakeTool struct {
	inputs []string
	out    string
	err    error
}

func (f *fakeTool) Call(_ context.Context, input string) (string, error) {
	f.inputs = append(f.inputs, input)
	return f.out, f.err
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"plain", Query{Text: "  interim   manager  "}, "interim manager"},
		{"domains", Query{Text: "cfo", AllowedDomains: []string{"hays.nl", "ebbinge.nl"}}, "cfo (site:hays.nl OR site:ebbinge.nl)"},
		{"blank domains", Query{Text: "cfo", AllowedDomains: []string{" ", ""}}, "cfo"},
		{"country ignored", Query{Text: "cfo", Country: "NL"}, "cfo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildQuery(tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildQuery_Empty(t *testing.T) {
	_, err := BuildQuery(Query{Text: " \n "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestBuildQuery_Truncates(t *testing.T) {
	got, err := BuildQuery(Query{Text: strings.Repeat("a", maxQueryLen*2)})
	require.NoError(t, err)
	assert.Len(t, got, maxQueryLen)
}

func TestBuildQuery_TruncatesOnRuneBoundary(t *testing.T) {
	got, err := BuildQuery(Query{Text: strings.Repeat("a", maxQueryLen-1) + "ëëëë"})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("a", maxQueryLen-1), got)

	got, err = BuildQuery(Query{Text: strings.Repeat("é", maxQueryLen)})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", maxQueryLen/2), got)
}

func TestToolSearcher(t *testing.T) {
	tool := &fakeTool{out: "1. Hays executive search"}
	s := NewToolSearcher(tool)

	out, err := s.Search(context.Background(), Query{Text: "executive search", AllowedDomains: []string{"hays.nl"}})
	require.NoError(t, err)
	assert.Equal(t, "1. Hays executive search", out)
	require.Len(t, tool.inputs, 1)
	assert.Equal(t, "executive search (site:hays.nl)", tool.inputs[0])
}

func TestToolSearcher_Errors(t *testing.T) {
	tool := &fakeTool{err: errors.New("rate limited")}
	s := NewToolSearcher(tool)

	_, err := s.Search(context.Background(), Query{Text: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	_, err = s.Search(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Len(t, tool.inputs, 1)
}

func TestNewDuckDuckGo(t *testing.T) {
	s, err := NewDuckDuckGo(config.SearchConfig{MaxResults: 3, UserAgent: "brandflow-test"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestSearcherFunc(t *testing.T) {
	var got Query
	f := SearcherFunc(func(_ context.Context, q Query) (string, error) {
		got = q
		return "ok", nil
	})
	out, err := f.Search(context.Background(), Query{Text: "t", Country: "NL"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, "NL", got.Country)
}
