package embeddings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]float32), args.Error(1)
}

type MockWarmClient struct {
	MockClient
}

func (m *MockWarmClient) Warmup(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func TestClientProvider_InitializeProbesDimensions(t *testing.T) {
	client := new(MockClient)
	client.On("CreateEmbedding", mock.Anything, probeText).Return([]float32{1, 2, 3}, nil).Once()

	p := NewClientProvider("test", client)
	assert.Equal(t, 0, p.Dimensions())

	require.NoError(t, p.Initialize(context.Background()))
	assert.Equal(t, 3, p.Dimensions())
	assert.Equal(t, "test", p.Name())
	client.AssertExpectations(t)
}

func TestClientProvider_InitializeRunsWarmupFirst(t *testing.T) {
	client := new(MockWarmClient)
	client.On("Warmup", mock.Anything).Return(nil).Once()
	client.On("CreateEmbedding", mock.Anything, probeText).Return([]float32{1}, nil).Once()

	p := NewClientProvider("ollama", client)
	require.NoError(t, p.Initialize(context.Background()))
	client.AssertExpectations(t)
}

func TestClientProvider_InitializeFailures(t *testing.T) {
	t.Run("warmup error", func(t *testing.T) {
		client := new(MockWarmClient)
		client.On("Warmup", mock.Anything).Return(errors.New("no such model")).Once()

		err := NewClientProvider("ollama", client).Initialize(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no such model")
		client.AssertNotCalled(t, "CreateEmbedding", mock.Anything, mock.Anything)
	})

	t.Run("probe error", func(t *testing.T) {
		client := new(MockClient)
		client.On("CreateEmbedding", mock.Anything, probeText).Return(nil, errors.New("unauthorized")).Once()

		p := NewClientProvider("openai", client)
		require.Error(t, p.Initialize(context.Background()))
		assert.Equal(t, 0, p.Dimensions())
	})

	t.Run("empty probe vector", func(t *testing.T) {
		client := new(MockClient)
		client.On("CreateEmbedding", mock.Anything, probeText).Return([]float32{}, nil).Once()

		err := NewClientProvider("openai", client).Initialize(context.Background())
		require.ErrorIs(t, err, ErrEmptyEmbedding)
	})
}

func TestClientProvider_EmbedBeforeInitialize(t *testing.T) {
	_, err := NewClientProvider("test", new(MockClient)).Embed(context.Background(), "apple")
	require.ErrorIs(t, err, ErrNotInitialized)
}

func TestClientProvider_Embed(t *testing.T) {
	client := new(MockClient)
	client.On("CreateEmbedding", mock.Anything, probeText).Return([]float32{1, 0}, nil).Once()
	client.On("CreateEmbedding", mock.Anything, "apple").Return([]float32{0.5, 0.5}, nil).Once()
	client.On("CreateEmbedding", mock.Anything, "broken").Return(nil, errors.New("runtime error")).Once()

	p := NewClientProvider("test", client)
	require.NoError(t, p.Initialize(context.Background()))

	v, err := p.Embed(context.Background(), "apple")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, v)

	_, err = p.Embed(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test embed")

	_, err = p.Embed(context.Background(), " ")
	require.ErrorIs(t, err, ErrEmptyInput)
}
