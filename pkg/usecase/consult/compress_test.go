package consult_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/navadimml/chitta/pkg/usecase/consult"
	"google.golang.org/genai"
)

func TestIsTokenLimitError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name: "actual Gemini token limit error",
			err: genai.APIError{
				Code:    400,
				Status:  "INVALID_ARGUMENT",
				Message: "The input token count (2500030) exceeds the maximum number of tokens allowed (1048576).",
			},
			expected: true,
		},
		{
			name: "400 INVALID_ARGUMENT but unrelated",
			err: genai.APIError{
				Code:    400,
				Status:  "INVALID_ARGUMENT",
				Message: "invalid parameter format",
			},
			expected: false,
		},
		{
			name: "500 error",
			err: genai.APIError{
				Code:    500,
				Status:  "INTERNAL_ERROR",
				Message: "internal server error",
			},
			expected: false,
		},
		{
			name:     "other error type",
			err:      errors.New("network timeout"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := consult.IsTokenLimitErrorForTest(tt.err)
			gt.V(t, result).Equal(tt.expected)
		})
	}
}

func TestCompressHistory(t *testing.T) {
	ctx := context.Background()

	t.Run("empty history", func(t *testing.T) {
		mock := &mockGemini{}

		_, err := consult.CompressHistoryForTest(ctx, mock, nil)
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("history is empty")
	})

	t.Run("successful compression", func(t *testing.T) {
		contents := []*genai.Content{
			genai.NewContentFromText("Is Mia's speech typical for her age?", genai.RoleUser),
			genai.NewContentFromText("Most four year olds speak in sentences; ranges are wide.", genai.RoleModel),
			genai.NewContentFromText("What about her playing alone?", genai.RoleUser),
			genai.NewContentFromText("Parallel play fades gradually; shared play grows through age four.", genai.RoleModel),
			genai.NewContentFromText("How do I bring it up with daycare?", genai.RoleUser),
			genai.NewContentFromText("Ask the teachers what they observe during group time.", genai.RoleModel),
		}
		initialCount := len(contents)

		mock := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return textResponse("Questions asked: speech, play. Answers: ranges are wide."), nil
			},
		}

		compressed, err := consult.CompressHistoryForTest(ctx, mock, contents)
		gt.NoError(t, err)
		gt.Number(t, len(compressed)).Less(initialCount)

		gt.V(t, compressed[0].Role).Equal(genai.RoleUser)
		gt.S(t, compressed[0].Parts[0].Text).Contains("Previous Conversation Summary")

		// Original slice untouched.
		gt.Equal(t, len(contents), initialCount)
	})

	t.Run("summary error", func(t *testing.T) {
		contents := []*genai.Content{
			genai.NewContentFromText("First message with enough content to cross the threshold", genai.RoleUser),
			genai.NewContentFromText("Second message with enough content to cross the threshold", genai.RoleModel),
			genai.NewContentFromText("Third message with enough content to cross the threshold", genai.RoleUser),
			genai.NewContentFromText("Fourth message with enough content to cross the threshold", genai.RoleModel),
			genai.NewContentFromText("Fifth message with enough content to cross the threshold", genai.RoleUser),
		}

		mock := &mockGemini{
			generateFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, errors.New("API error")
			},
		}

		_, err := consult.CompressHistoryForTest(ctx, mock, contents)
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("failed to summarize")
	})

	t.Run("insufficient content to compress", func(t *testing.T) {
		contents := []*genai.Content{
			genai.NewContentFromText("x", genai.RoleUser),
		}

		_, err := consult.CompressHistoryForTest(ctx, &mockGemini{}, contents)
		gt.Error(t, err)
		gt.S(t, err.Error()).Contains("insufficient content")
	})
}
