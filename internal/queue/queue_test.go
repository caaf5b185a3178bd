package queue

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/margincheck/internal/analysis"
)

func TestJob_EncodeDecode(t *testing.T) {
	j := Job{
		JobID:      "b7c1",
		Source:     "s3://bucket/in.pdf",
		Settings:   analysis.Settings{BleedSize: 2, MarginThreshold: 4},
		Attempt:    1,
		EnqueuedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	b, err := j.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"bleedSize":2`)

	got, err := DecodeJob(b)
	require.NoError(t, err)
	assert.Equal(t, j, got)
}

func TestJob_EncodeRequiresFields(t *testing.T) {
	_, err := Job{Source: "x.pdf"}.Encode()
	assert.Error(t, err)
	_, err = Job{JobID: "a"}.Encode()
	assert.Error(t, err)
}

func TestDecodeJob_Rejects(t *testing.T) {
	_, err := DecodeJob([]byte("{"))
	assert.Error(t, err)
	_, err = DecodeJob([]byte(`{"source":"a.pdf"}`))
	assert.Error(t, err)
}

func TestIsBusyGroupErr(t *testing.T) {
	assert.False(t, isBusyGroupErr(nil))
	assert.True(t, isBusyGroupErr(errors.New("BUSYGROUP Consumer Group name already exists")))
	assert.False(t, isBusyGroupErr(errors.New("connection refused")))
}
