package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeOpts(key string) (freeOptions, *strings.Builder, *strings.Builder) {
	var stdout, stderr strings.Builder
	return freeOptions{
		key:    key,
		yes:    true,
		stdout: &stdout,
		stderr: &stderr,
		prompt: input(),
	}, &stdout, &stderr
}

func TestFreeTerminatesAllHolders(t *testing.T) {
	s, killer := newFixture(map[int]string{501: "Finder", 900: "Photos"})
	opts, stdout, _ := freeOpts("Backup")

	code := freeVolume(context.Background(), s, opts)
	assert.Equal(t, 0, code)
	assert.ElementsMatch(t, []int{501, 900}, killer.killed)
	assert.Contains(t, stdout.String(), "Terminated 2, failed 0")
	assert.Contains(t, stdout.String(), "No processes are using Backup.")
}

func TestFreeExitsNonZeroOnFailure(t *testing.T) {
	s, _ := newFixture(map[int]string{501: "Finder", 900: "Photos"}, 501)
	opts, stdout, _ := freeOpts("Backup")

	code := freeVolume(context.Background(), s, opts)
	assert.Equal(t, 1, code)
	out := stdout.String()
	assert.Contains(t, out, "Terminated 1, failed 1")
	assert.Contains(t, out, "1 process(es) using Backup")
	assert.Contains(t, out, "501      Finder")
}

func TestFreeHonoursExclude(t *testing.T) {
	s, killer := newFixture(map[int]string{501: "Finder", 900: "Photos"})
	opts, _, _ := freeOpts("Backup")
	opts.exclude = []int{501}

	assert.Equal(t, 0, freeVolume(context.Background(), s, opts))
	assert.Equal(t, []int{900}, killer.killed)
}

func TestFreeNothingSelected(t *testing.T) {
	s, killer := newFixture(map[int]string{501: "Finder"})
	opts, stdout, stderr := freeOpts("Backup")
	opts.only = []int{42}

	assert.Equal(t, 0, freeVolume(context.Background(), s, opts))
	assert.Empty(t, killer.killed)
	assert.Contains(t, stdout.String(), "Nothing selected to terminate.")
	assert.Contains(t, stderr.String(), "PID 42 is not using Backup")
}

func TestFreeUnknownVolume(t *testing.T) {
	s, _ := newFixture(map[int]string{501: "Finder"})
	opts, _, stderr := freeOpts("Photos")

	assert.Equal(t, 1, freeVolume(context.Background(), s, opts))
	assert.Contains(t, stderr.String(), `No external volume named "Photos"`)
	assert.Contains(t, stderr.String(), "Backup (/Volumes/Backup)")
}

func TestFreeRequiresConfirmation(t *testing.T) {
	t.Run("no terminal", func(t *testing.T) {
		s, killer := newFixture(map[int]string{501: "Finder"})
		opts, _, stderr := freeOpts("Backup")
		opts.yes = false

		assert.Equal(t, 1, freeVolume(context.Background(), s, opts))
		assert.Empty(t, killer.killed)
		assert.Contains(t, stderr.String(), "--yes")
	})

	t.Run("declined", func(t *testing.T) {
		s, killer := newFixture(map[int]string{501: "Finder"})
		opts, _, stderr := freeOpts("Backup")
		opts.yes = false
		opts.canPrompt = true
		opts.prompt = input("n")

		assert.Equal(t, 1, freeVolume(context.Background(), s, opts))
		assert.Empty(t, killer.killed)
		assert.Contains(t, stderr.String(), "Aborted.")
	})

	t.Run("accepted", func(t *testing.T) {
		s, killer := newFixture(map[int]string{501: "Finder"})
		opts, _, _ := freeOpts("Backup")
		opts.yes = false
		opts.canPrompt = true
		opts.prompt = input("y")

		assert.Equal(t, 0, freeVolume(context.Background(), s, opts))
		assert.Equal(t, []int{501}, killer.killed)
	})
}

func TestFreeJSON(t *testing.T) {
	s, _ := newFixture(map[int]string{501: "Finder", 900: "Photos"}, 501)
	opts, stdout, stderr := freeOpts("Backup")
	opts.json = true

	assert.Equal(t, 1, freeVolume(context.Background(), s, opts))
	assert.Contains(t, stderr.String(), "2 process(es) using Backup")

	var out struct {
		Volume struct {
			Name string `json:"name"`
		} `json:"volume"`
		Outcome struct {
			SuccessCount int `json:"success_count"`
			FailCount    int `json:"fail_count"`
		} `json:"outcome"`
		Remaining []struct {
			PID int `json:"pid"`
		} `json:"remaining"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout.String()), &out))
	assert.Equal(t, "Backup", out.Volume.Name)
	assert.Equal(t, 1, out.Outcome.SuccessCount)
	assert.Equal(t, 1, out.Outcome.FailCount)
	require.Len(t, out.Remaining, 1)
	assert.Equal(t, 501, out.Remaining[0].PID)
}
