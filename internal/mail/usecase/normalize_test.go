package usecase

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"sage-backend/internal/mail/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNormalizeThreadScenario(t *testing.T) {
	raw := []domain.Message{
		{ID: "1", ThreadID: "T1", Subject: "Newest", CreatedTime: day("2024-01-02")},
		{ID: "2", ThreadID: "T2", CreatedTime: day("2024-01-05")},
		{ID: "3", ThreadID: "T1", Subject: "Oldest", CreatedTime: day("2024-01-01")},
	}

	thread, err := NormalizeThread(raw, "T1")
	require.NoError(t, err)
	require.Len(t, thread.Messages, 2)
	assert.Equal(t, "1", thread.Messages[0].ID)
	assert.Equal(t, "3", thread.Messages[1].ID)
	assert.True(t, thread.Messages[0].Expanded)
	assert.False(t, thread.Messages[1].Expanded)
	assert.Equal(t, "T1", thread.ID)
	assert.Equal(t, "Newest", thread.Subject)
}

func TestNormalizeThreadExactMatchOnly(t *testing.T) {
	raw := []domain.Message{
		{ID: "1", ThreadID: "T10"},
		{ID: "2", ThreadID: "t1"},
		{ID: "3", ThreadID: " T1"},
	}
	_, err := NormalizeThread(raw, "T1")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)
}

func TestNormalizeThreadErrors(t *testing.T) {
	_, err := NormalizeThread(nil, "T1")
	assert.ErrorIs(t, err, domain.ErrThreadNotFound)

	_, err = NormalizeThread([]domain.Message{{ID: "1", ThreadID: ""}}, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidThreadID)
}

func TestNormalizeThreadStableTies(t *testing.T) {
	same := day("2024-03-01")
	raw := []domain.Message{
		{ID: "a", ThreadID: "T", CreatedTime: same},
		{ID: "b", ThreadID: "T", CreatedTime: same.Add(time.Hour)},
		{ID: "c", ThreadID: "T", CreatedTime: same},
		{ID: "d", ThreadID: "T", CreatedTime: same},
	}
	thread, err := NormalizeThread(raw, "T")
	require.NoError(t, err)

	ids := make([]string, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids)
}

func TestNormalizeThreadProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	threads := []string{"A", "B", "C"}
	base := day("2024-01-01")

	for round := 0; round < 200; round++ {
		n := rng.Intn(20)
		raw := make([]domain.Message, n)
		for i := range raw {
			raw[i] = domain.Message{
				ID:          fmt.Sprintf("%d-%d", round, i),
				ThreadID:    threads[rng.Intn(len(threads))],
				CreatedTime: base.Add(time.Duration(rng.Intn(5)) * time.Hour),
			}
		}
		target := threads[rng.Intn(len(threads))]

		thread, err := NormalizeThread(raw, target)
		if err != nil {
			require.ErrorIs(t, err, domain.ErrThreadNotFound)
			for _, m := range raw {
				require.NotEqual(t, target, m.ThreadID)
			}
			continue
		}

		expanded := 0
		for i, m := range thread.Messages {
			require.Equal(t, target, m.ThreadID)
			if i+1 < len(thread.Messages) {
				require.False(t, m.CreatedTime.Before(thread.Messages[i+1].CreatedTime))
			}
			if m.Expanded {
				expanded++
			}
		}
		require.Equal(t, 1, expanded)
		require.True(t, thread.Messages[0].Expanded)
	}
}

func TestNormalizeThreadDoesNotAliasInput(t *testing.T) {
	raw := []domain.Message{{ID: "1", ThreadID: "T", Subject: "orig"}}
	thread, err := NormalizeThread(raw, "T")
	require.NoError(t, err)

	thread.Messages[0].Subject = "changed"
	assert.Equal(t, "orig", raw[0].Subject)
}
