package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-image", "p.png", "-lang", "jp", "-out", "o", "-text"})
	require.NoError(t, err)
	assert.Equal(t, &options{image: "p.png", lang: "jp", out: "o", text: true}, opts)

	opts, err = parseFlags([]string{"-image", "p.png", "-enqueue"})
	require.NoError(t, err)
	assert.True(t, opts.enqueue)
	assert.Empty(t, opts.lang)
}

func TestParseFlagsUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"-lang", "jp"},
		{"-image", "p.png", "-lang", "klingon"},
		{"-image", "p.png", "extra"},
		{"-nope"},
	} {
		_, err := parseFlags(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestRunUsageExitCode(t *testing.T) {
	assert.Equal(t, exitUsage, run([]string{"-lang", "jp"}))
}
