package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/fableforge/fault"
	"github.com/nathoo/fableforge/types"
)

// fakeService returns an httptest server replying with the given content as
// a single chat completion choice.
func fakeService(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(srv *httptest.Server) *Client {
	return NewClient(srv.URL, "test-key", "test-model", nil, WithRateLimit(1000, 1000))
}

func TestGenerateEntity(t *testing.T) {
	reply := `{"name":"Bramblefang","description":"A thorned wolf.",
		"portraitRef":"a wolf wreathed in briars","persona":"",
		"stats":{"hp":26,"maxHp":26,"mp":4,"maxMp":4,"atk":9,"def":3}}`
	var captured chatRequest
	srv := fakeService(t, reply, &captured)
	defer srv.Close()

	e, err := testClient(srv).GenerateEntity(context.Background(),
		"a wolf made of thorns", types.CategoryEnemy, []string{"beast", "forest"})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "Bramblefang", e.Name)
	assert.Equal(t, types.CategoryEnemy, e.Category)
	assert.Equal(t, 26, e.Stats.MaxHP)
	assert.Equal(t, []string{"beast", "forest"}, e.Tags)
	assert.Equal(t, "a wolf made of thorns", e.OriginalPrompt)
	assert.Empty(t, e.DialoguePersona, "only NPCs carry a persona")

	require.NotEmpty(t, captured.Messages)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[1].Content, "thorns")
}

func TestGenerateEntityStripsCodeFence(t *testing.T) {
	reply := "```json\n{\"name\":\"Mira\",\"stats\":{\"hp\":10,\"maxHp\":10}}\n```"
	srv := fakeService(t, reply, nil)
	defer srv.Close()

	e, err := testClient(srv).GenerateEntity(context.Background(),
		"a merchant", types.CategoryNPC, nil)
	require.NoError(t, err)
	assert.Equal(t, "Mira", e.Name)
}

func TestGenerateEntityMalformedReply(t *testing.T) {
	srv := fakeService(t, "I refuse to answer in JSON.", nil)
	defer srv.Close()

	_, err := testClient(srv).GenerateEntity(context.Background(),
		"anything", types.CategoryEnemy, nil)
	assert.ErrorIs(t, err, fault.ErrGeneration)
}

func TestGenerateEntityClampsStats(t *testing.T) {
	reply := `{"name":"Glutton","stats":{"hp":999,"maxHp":30,"mp":-5,"maxMp":10}}`
	srv := fakeService(t, reply, nil)
	defer srv.Close()

	e, err := testClient(srv).GenerateEntity(context.Background(),
		"x", types.CategoryEnemy, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, e.Stats.HP)
	assert.Equal(t, 0, e.Stats.MP)
}

func TestGenerateEntityServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "over quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv).GenerateEntity(context.Background(),
		"x", types.CategoryEnemy, nil)
	assert.ErrorIs(t, err, fault.ErrGeneration)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	calls := 0
	counting := testClient(srv)
	counting.http.Transport = roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls++
		return http.DefaultTransport.RoundTrip(r)
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := counting.GenerateDialogueReply(ctx, "p", nil, "hello")
		assert.ErrorIs(t, err, fault.ErrGeneration)
	}
	assert.Equal(t, 3, calls, "breaker should reject calls after three failures")
}

func TestGenerateDialogueReply(t *testing.T) {
	var captured chatRequest
	srv := fakeService(t, "  Welcome, traveler.  ", &captured)
	defer srv.Close()

	history := []types.DialogueTurn{
		{Speaker: "player", Text: "Hello?"},
		{Speaker: "Mira", Text: "Who goes there?"},
	}
	reply, err := testClient(srv).GenerateDialogueReply(context.Background(),
		"Gruff but kind merchant", history, "Just a traveler.")
	require.NoError(t, err)
	assert.Equal(t, "Welcome, traveler.", reply)

	// system + 2 history turns + new message
	require.Len(t, captured.Messages, 4)
	assert.Contains(t, captured.Messages[0].Content, "Gruff but kind merchant")
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "assistant", captured.Messages[2].Role)
	assert.Equal(t, "Just a traveler.", captured.Messages[3].Content)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestStaticGenerator(t *testing.T) {
	g := Static{}
	e, err := g.GenerateEntity(context.Background(), "village elder", types.CategoryNPC, []string{"town"})
	require.NoError(t, err)
	assert.Equal(t, "Village elder", e.Name)
	assert.NotEmpty(t, e.ID)
	assert.NotEmpty(t, e.DialoguePersona)

	reply, err := g.GenerateDialogueReply(context.Background(), "", nil, "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}

func TestStaticGeneratorMultibyteNames(t *testing.T) {
	g := Static{}

	e, err := g.GenerateEntity(context.Background(), "éminence grise of the old court", types.CategoryNPC, nil)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(e.Name), "truncated name must stay valid UTF-8: %q", e.Name)
	assert.Equal(t, 24, utf8.RuneCountInString(e.Name))
	assert.Equal(t, "Éminence grise of the ol", e.Name)

	e, err = g.GenerateEntity(context.Background(), "ögre", types.CategoryEnemy, nil)
	require.NoError(t, err)
	assert.Equal(t, "Ögre", e.Name)
}
