package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestGetAPIKeyFromEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "  test-api-key-12345 \n")

	key, err := GetAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "test-api-key-12345", key)
}

func TestGetAPIKeyNoSource(t *testing.T) {
	t.Setenv(EnvAPIKey, "")
	t.Setenv("HOME", t.TempDir())

	_, err := GetAPIKey()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGetCredentialPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := getCredentialPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".photo-enhance", "credentials.gpg"), path)
}

func TestGetFromGPGFileNotFound(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := getFromGPG()
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureType
	}{
		{"401", &genai.APIError{Code: 401, Message: "unauthenticated"}, ErrTypeInvalidKey},
		{"400", &genai.APIError{Code: 400, Message: "bad"}, ErrTypeInvalidKey},
		{"429", &genai.APIError{Code: 429, Message: "slow down"}, ErrTypeQuotaExceeded},
		{"503", &genai.APIError{Code: 503, Message: "unavailable"}, ErrTypeNetworkError},
		{"418", &genai.APIError{Code: 418, Message: "teapot"}, ErrTypeUnknown},
		{"key text", errors.New("API key not valid. Please pass a valid API key."), ErrTypeInvalidKey},
		{"quota text", errors.New("RESOURCE EXHAUSTED: quota"), ErrTypeQuotaExceeded},
		{"dial", errors.New("dial tcp: lookup generativelanguage.googleapis.com: no such host"), ErrTypeNetworkError},
		{"deadline", context.DeadlineExceeded, ErrTypeNetworkError},
		{"other", errors.New("boom"), ErrTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Type)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.Nil(t, Classify(nil))
}

type stubGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	calls int
}

func (p *stubGenerator) GenerateContent(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	p.calls++
	return p.resp, p.err
}

func TestValidateAPIKey(t *testing.T) {
	ok := &stubGenerator{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}}
	assert.NoError(t, ValidateAPIKey(context.Background(), ok))
	assert.Equal(t, 1, ok.calls)

	empty := &stubGenerator{resp: &genai.GenerateContentResponse{}}
	var valErr *ValidationError
	require.ErrorAs(t, ValidateAPIKey(context.Background(), empty), &valErr)
	assert.Equal(t, ErrTypeUnknown, valErr.Type)

	denied := &stubGenerator{err: &genai.APIError{Code: 403}}
	require.ErrorAs(t, ValidateAPIKey(context.Background(), denied), &valErr)
	assert.Equal(t, ErrTypeInvalidKey, valErr.Type)

	require.ErrorAs(t, ValidateAPIKey(context.Background(), nil), &valErr)
	assert.Equal(t, ErrTypeNoKey, valErr.Type)
}
