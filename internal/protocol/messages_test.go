package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/wordsim/internal/models"
	"github.com/formbricks/wordsim/internal/simerrors"
)

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Inbound
		wantErr bool
	}{
		{name: "addWord", input: `{"type":"addWord","word":"apple"}`, want: Inbound{Type: TypeAddWord, Word: "apple"}},
		{name: "addWord is trimmed", input: `{"type":"addWord","word":"  apple pie \n"}`, want: Inbound{Type: TypeAddWord, Word: "apple pie"}},
		{name: "clearHistory", input: `{"type":"clearHistory"}`, want: Inbound{Type: TypeClearHistory}},
		{name: "unknown fields ignored", input: `{"type":"clearHistory","extra":1}`, want: Inbound{Type: TypeClearHistory}},
		{name: "empty word", input: `{"type":"addWord","word":"   "}`, wantErr: true},
		{name: "missing word", input: `{"type":"addWord"}`, wantErr: true},
		{name: "unknown type", input: `{"type":"removeWord","word":"apple"}`, wantErr: true},
		{name: "missing type", input: `{"word":"apple"}`, wantErr: true},
		{name: "malformed json", input: `{"type":`, wantErr: true},
		{name: "not an object", input: `"addWord"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeInbound([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, simerrors.ErrValidation), "want validation error, got %v", err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInboundEncoding(t *testing.T) {
	data, err := json.Marshal(AddWord(" apple "))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"addWord","word":"apple"}`, string(data))

	data, err = json.Marshal(ClearHistory())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"clearHistory"}`, string(data))
}

func TestOutboundMarshal(t *testing.T) {
	sims := models.NewSimilarities(1)
	sims.Set("apple", 0.5)

	tests := []struct {
		name string
		msg  Outbound
		want string
	}{
		{name: "ready", msg: Ready(), want: `{"type":"ready"}`},
		{name: "updated empty", msg: Updated(nil), want: `{"type":"updated","words":[]}`},
		{name: "updated zero value words", msg: Outbound{Type: TypeUpdated}, want: `{"type":"updated","words":[]}`},
		{
			name: "updated with entries",
			msg:  Updated([]models.Entry{{Text: "apple"}, {Text: "banana", Similarities: sims}}),
			want: `{"type":"updated","words":[{"word":"apple","similarities":{}},{"word":"banana","similarities":{"apple":0.5}}]}`,
		},
		{name: "error with word", msg: Failure("apple", errors.New("boom")), want: `{"type":"error","error":"boom","word":"apple"}`},
		{name: "error without word", msg: Failure("", errors.New("model failed")), want: `{"type":"error","error":"model failed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestOutboundMarshal_UnknownType(t *testing.T) {
	_, err := json.Marshal(Outbound{Type: "bogus"})
	require.Error(t, err)
}

func TestOutboundUnmarshal(t *testing.T) {
	var msg Outbound
	require.NoError(t, json.Unmarshal([]byte(`{"type":"updated","words":[{"word":"apple","similarities":{}},{"word":"pear","similarities":{"apple":0.25}}]}`), &msg))

	require.Equal(t, TypeUpdated, msg.Type)
	require.Len(t, msg.Words, 2)
	assert.Equal(t, "pear", msg.Words[1].Word)

	score, ok := msg.Words[1].Similarities.Get("apple")
	require.True(t, ok)
	assert.InDelta(t, 0.25, score, 1e-12)

	require.NoError(t, json.Unmarshal([]byte(`{"type":"updated","words":[]}`), &msg))
	assert.NotNil(t, msg.Words)
	assert.Empty(t, msg.Words)

	require.Error(t, json.Unmarshal([]byte(`{"type":"nope"}`), &msg))
}
