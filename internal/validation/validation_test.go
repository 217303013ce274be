package validation

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/wordsim/internal/simerrors"
)

type sample struct {
	Kind  string `json:"kind" validate:"required,oneof=a b"`
	Limit int    `json:"limit" validate:"gte=0,lte=10"`
}

type query struct {
	Replay *bool `form:"replay"`
	Limit  int   `form:"limit" validate:"gte=0"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     sample
		wantField string
		wantMsg   string
	}{
		{name: "valid", input: sample{Kind: "a", Limit: 3}},
		{name: "missing kind", input: sample{Limit: 1}, wantField: "kind", wantMsg: "kind is required"},
		{name: "unknown kind", input: sample{Kind: "z"}, wantField: "kind", wantMsg: "kind must be one of: a b"},
		{name: "limit too large", input: sample{Kind: "b", Limit: 11}, wantField: "limit", wantMsg: "limit must be less than or equal to 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.input)
			if tt.wantField == "" {
				require.NoError(t, err)

				return
			}

			var vErr *simerrors.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Field)
			assert.Equal(t, tt.wantMsg, vErr.Message)
		})
	}
}

func TestValidateAndDecodeQueryParams(t *testing.T) {
	var q query
	require.NoError(t, ValidateAndDecodeQueryParams(url.Values{"replay": {"false"}, "limit": {"4"}}, &q))
	require.NotNil(t, q.Replay)
	assert.False(t, *q.Replay)
	assert.Equal(t, 4, q.Limit)

	q = query{}
	err := ValidateAndDecodeQueryParams(url.Values{"limit": {"-1"}}, &q)
	assert.ErrorIs(t, err, simerrors.ErrValidation)

	q = query{}
	err = ValidateAndDecodeQueryParams(url.Values{"replay": {"perhaps"}}, &q)
	assert.ErrorIs(t, err, simerrors.ErrValidation)
}
