package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsearch/internal/generate"
)

func newExpanderWithResponse(t *testing.T, response string) *Expander {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":` + quoteJSON(response) + `}`))
	}))
	t.Cleanup(srv.Close)
	client := generate.New(srv.URL, "llama3.2", 5*time.Second)
	return NewExpander(client, 3)
}

func quoteJSON(s string) string {
	out := "\""
	for _, r := range s {
		if r == '"' {
			out += `\"`
		} else if r == '\n' {
			out += `\n`
		} else {
			out += string(r)
		}
	}
	return out + "\""
}

func TestExpand_AlwaysStartsWithOriginal(t *testing.T) {
	e := newExpanderWithResponse(t, "how to sign in\nlogging into the app")
	variants := e.Expand(context.Background(), "how do I log in")
	require.NotEmpty(t, variants)
	assert.Equal(t, "how do I log in", variants[0])
}

func TestExpand_ParsesNumberedBulletedQuotedLines(t *testing.T) {
	e := newExpanderWithResponse(t, "1. \"sign in steps\"\n- logging into the account\n* authenticate a user")
	variants := e.Expand(context.Background(), "how do I log in")
	assert.Contains(t, variants, "sign in steps")
	assert.Contains(t, variants, "logging into the account")
	assert.Contains(t, variants, "authenticate a user")
}

func TestExpand_DropsMetaLinesAndDuplicatesAndOriginal(t *testing.T) {
	e := newExpanderWithResponse(t, "Here are some alternatives:\nhow do I log in\nsign into my account\nsign into my account")
	variants := e.Expand(context.Background(), "how do I log in")
	assert.NotContains(t, variants[1:], "how do I log in")
	assert.Equal(t, 2, len(variants), "one original + one deduped variant")
}

func TestExpand_TruncatesToNumVariations(t *testing.T) {
	e := newExpanderWithResponse(t, "a\nb\nc\nd\ne")
	variants := e.Expand(context.Background(), "q")
	assert.LessOrEqual(t, len(variants)-1, 3)
}

func TestExpand_NoClient_ReturnsOriginalOnly(t *testing.T) {
	e := NewExpander(nil, 3)
	variants := e.Expand(context.Background(), "q")
	assert.Equal(t, []string{"q"}, variants)
}

func TestExpand_GenerationError_ReturnsOriginalOnly(t *testing.T) {
	client := generate.New("http://127.0.0.1:1", "llama3.2", 200*time.Millisecond)
	e := NewExpander(client, 3)
	variants := e.Expand(context.Background(), "q")
	assert.Equal(t, []string{"q"}, variants)
}
