package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/verse-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/verse-search/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Metrics.Enabled = false
	cfg.Redis.Enabled = false
	cfg.Kafka.Enabled = false
	return cfg
}

func TestRunReturnsStartupFailures(t *testing.T) {
	cfg := testConfig(t)
	cfg.Corpus.Path = filepath.Join(t.TempDir(), "missing.csv")

	err := run(cfg)
	assert.ErrorContains(t, err, "loading corpus")
}

func TestRunRejectsBadTrustedProxy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "verses.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,book,chapter,verse,text\n1,43,11,35,Jesus wept.\n"), 0o644))

	cfg := testConfig(t)
	cfg.Corpus.Path = path
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.TrustedProxies = []string{"not-an-address"}

	err := run(cfg)
	assert.ErrorContains(t, err, "configuring rate limiter")
}

func TestCacheNamespaceTracksCorpus(t *testing.T) {
	small, err := corpus.Build([]corpus.RawRecord{{Line: 1, Book: "43", Chapter: "11", Verse: "35", Text: "Jesus wept."}})
	require.NoError(t, err)
	large, err := corpus.Build([]corpus.RawRecord{
		{Line: 1, Book: "43", Chapter: "11", Verse: "35", Text: "Jesus wept."},
		{Line: 2, Book: "1", Chapter: "1", Verse: "1", Text: "In the beginning"},
	})
	require.NoError(t, err)

	report := corpus.LoadReport{Source: "csv:t_asv.csv"}
	assert.Equal(t, cacheNamespace(report, small), cacheNamespace(report, small))
	assert.NotEqual(t, cacheNamespace(report, small), cacheNamespace(report, large))
}
