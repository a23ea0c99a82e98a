package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscript_AppendOnly(t *testing.T) {
	tr := New(UserText("Maak een marketingplan voor HRC"))
	require.Equal(t, 1, tr.Len())

	tr.Append(AssistantText("HRC"), AssistantText("marketingplan"))
	assert.Equal(t, 3, tr.Len())

	msgs := tr.Messages()
	assert.Equal(t, RoleUser, msgs[0].Role())
	assert.Equal(t, "HRC", msgs[1].Text())
	assert.Equal(t, "marketingplan", msgs[2].Text())
}

func TestTranscript_MessagesIsSnapshot(t *testing.T) {
	tr := New(UserText("a"))
	snap := tr.Messages()
	snap[0] = AssistantText("tampered")
	_ = append(snap, AssistantText("extra"))

	assert.Equal(t, 1, tr.Len())
	first, _ := tr.Last()
	assert.Equal(t, "a", first.Text())
}

func TestMessage_ContentIsCopied(t *testing.T) {
	items := []ContentItem{{Type: ContentInputText, Text: "origineel"}}
	msg := NewMessage(RoleUser, items...)
	items[0].Text = "gewijzigd"

	got := msg.Content()
	assert.Equal(t, "origineel", got[0].Text)
	got[0].Text = "ook gewijzigd"
	assert.Equal(t, "origineel", msg.Text())
}

func TestTranscript_Since(t *testing.T) {
	tr := New(UserText("a"), AssistantText("b"), AssistantText("c"))

	assert.Len(t, tr.Since(1), 2)
	assert.Nil(t, tr.Since(3))
	assert.Len(t, tr.Since(-5), 3)
}

func TestTranscript_LastEmpty(t *testing.T) {
	_, ok := New().Last()
	assert.False(t, ok)
}

func TestMessage_JSON(t *testing.T) {
	msg := NewMessage(RoleAssistant,
		ContentItem{Type: ContentOutputText, Text: "deel 1"},
		ContentItem{Type: ContentOutputText, Text: "deel 2"},
	)
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","content":[{"type":"output_text","text":"deel 1"},{"type":"output_text","text":"deel 2"}]}`, string(data))

	var back Message
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "deel 1\ndeel 2", back.Text())
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleSystem.Valid())
	assert.False(t, Role("tool").Valid())
}
