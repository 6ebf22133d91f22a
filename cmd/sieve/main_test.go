package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kbukum/sieve/pipeline"
)

const orders = `{"order":"o1","sku":"a"}
{"order":"o2","sku":"b"}
{"order":"o1","sku":"c"}
{"order":"o2"}
{"order":"o3","sku":"d"}
`

// summaryView is the part of the printed summary the tests look at.
type summaryView struct {
	RunID    string `json:"run_id"`
	Total    int    `json:"total"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	Items    int    `json:"items"`
	Complete bool   `json:"complete"`
}

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	require.NoError(t, sc.Err())
	return n
}

func TestRunGroupsAndPartitions(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "orders.jsonl", orders)
	pass := filepath.Join(dir, "out", "pass.jsonl")
	fail := filepath.Join(dir, "out", "fail.jsonl")

	var stdout, stderr bytes.Buffer
	code := execute([]string{
		"run",
		"-i", filepath.Join(dir, "*.jsonl"),
		"--group-by", "$.order",
		"--require", "$.sku",
		"--pass", pass,
		"--fail", fail,
		"--workers", "2",
		"--log-level", "error",
	}, nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var summary summaryView
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.True(t, summary.Complete)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 3, summary.Items)
	assert.NotEmpty(t, summary.RunID)

	assert.Equal(t, 3, countLines(t, pass))
	assert.Equal(t, 2, countLines(t, fail))
}

func TestRunPassThroughYAMLSummary(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "in.jsonl", "{\"id\":1,\"name\":\"a\"}\n{\"id\":2}\n")
	pass := filepath.Join(dir, "pass.csv.gz")

	var stdout, stderr bytes.Buffer
	code := execute([]string{
		"run", "-i", filepath.Join(dir, "in.jsonl"),
		"--require", "$.name",
		"--pass", pass,
		"--summary", "yaml",
		"--log-level", "error",
	}, nil, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var summary map[string]any
	require.NoError(t, yaml.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, 2, summary["total"])
	assert.Equal(t, 1, summary["passed"])
	assert.Equal(t, 1, summary["failed"])

	_, err := os.Stat(pass)
	assert.NoError(t, err)
}

func TestRunAllRejectedWithFailPolicy(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "in.jsonl", "{\"a\":1}\n{\"a\":2}\n")
	pass := filepath.Join(dir, "pass.jsonl")

	var stdout, stderr bytes.Buffer
	code := execute([]string{
		"run", "-i", filepath.Join(dir, "in.jsonl"),
		"--require", "$.missing",
		"--pass", pass,
		"--reject-policy", "fail",
		"--log-level", "error",
	}, nil, &stdout, &stderr)
	assert.Equal(t, 2, code)

	var summary summaryView
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.True(t, summary.Complete)
	assert.Equal(t, 2, summary.Failed)

	_, err := os.Stat(pass)
	assert.True(t, os.IsNotExist(err), "pass output must not be created")
}

func TestRunSourceErrorAborts(t *testing.T) {
	dir := t.TempDir()
	writeInput(t, dir, "in.jsonl", "{\"a\":1}\n{oops\n")

	var stdout, stderr bytes.Buffer
	code := execute([]string{
		"run", "-i", filepath.Join(dir, "in.jsonl"),
		"--pass", filepath.Join(dir, "pass.jsonl"),
		"--log-level", "error",
	}, nil, &stdout, &stderr)
	assert.Equal(t, 1, code)

	var summary summaryView
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.False(t, summary.Complete)
}

func TestRunReadsStdin(t *testing.T) {
	dir := t.TempDir()
	pass := filepath.Join(dir, "pass.jsonl")

	var stdout, stderr bytes.Buffer
	code := execute([]string{
		"run", "-i", "-",
		"--format", "jsonl",
		"--require", "$.sku",
		"--pass", pass,
		"--log-level", "error",
	}, strings.NewReader(orders), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var summary summaryView
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.True(t, summary.Complete)
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 4, summary.Passed)
	assert.Equal(t, 4, countLines(t, pass))
}

// An output path whose format cannot be inferred fails before any input is
// read or output created.
func TestRunRejectsUninferableOutputFormat(t *testing.T) {
	dir := t.TempDir()
	in := writeInput(t, dir, "in.jsonl", orders)
	tests := []struct {
		name string
		args []string
	}{
		{"pass", []string{"--pass", filepath.Join(dir, "out", "x.txt")}},
		{"pass without extension", []string{"--pass", filepath.Join(dir, "out", "x")}},
		{"fail", []string{"--pass", filepath.Join(dir, "out", "p.jsonl"), "--fail", filepath.Join(dir, "out", "f.txt")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append([]string{"run", "-i", in, "--log-level", "error"}, tc.args...)
			assert.Equal(t, 1, execute(args, nil, &stdout, &stderr))
			assert.Empty(t, stdout.String(), "no run, no summary")
			_, err := os.Stat(filepath.Join(dir, "out"))
			assert.True(t, os.IsNotExist(err))
		})
	}

	t.Run("explicit format", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		pass := filepath.Join(dir, "explicit", "x.txt")
		code := execute([]string{"run", "-i", in, "--pass", pass, "--output-format", "jsonl", "--log-level", "error"}, nil, &stdout, &stderr)
		require.Equal(t, 0, code, stderr.String())
		assert.Equal(t, 5, countLines(t, pass))
	})
}

func TestRunRejectsBadInvocation(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"no input", []string{"run", "--pass", filepath.Join(dir, "p.jsonl")}},
		{"no pass", []string{"run", "-i", filepath.Join(dir, "*.jsonl")}},
		{"no match", []string{"run", "-i", filepath.Join(dir, "none-*.jsonl"), "--pass", filepath.Join(dir, "p.jsonl")}},
		{"bad jsonpath", []string{"run", "-i", writeInput(t, dir, "x.jsonl", "{}\n"), "--pass", filepath.Join(dir, "p.jsonl"), "--require", "$["}},
		{"bad summary", []string{"run", "-i", filepath.Join(dir, "x.jsonl"), "--pass", filepath.Join(dir, "p.jsonl"), "--summary", "xml"}},
		{"stray argument", []string{"run", "extra"}},
		{"stdin without format", []string{"run", "-i", "-", "--pass", filepath.Join(dir, "p.jsonl")}},
		{"stdin with files", []string{"run", "-i", "-", "-i", filepath.Join(dir, "x.jsonl"), "--format", "jsonl", "--pass", filepath.Join(dir, "p.jsonl")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 1, execute(append(tc.args, "--log-level", "error"), nil, &stdout, &stderr))
		})
	}
}

func TestSettingsPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeInput(t, dir, "sieve.yml", `
pipeline:
  worker_count: 3
  queue_capacity: 5
  reject_policy: ignore
input:
  patterns: ["from-file/*.jsonl"]
output:
  pass: from-file.jsonl
`)
	t.Setenv("SIEVE_PIPELINE_QUEUE_CAPACITY", "7")

	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--config", cfgPath, "--workers", "9", "--pass", "from-flag.jsonl"}))

	s, err := loadSettings(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, 9, s.Pipeline.WorkerCount, "flag beats file")
	assert.Equal(t, 7, s.Pipeline.QueueCapacity, "env beats file")
	assert.Equal(t, pipeline.RejectIgnore, s.Pipeline.RejectPolicy, "file beats default")
	assert.Equal(t, []string{"from-file/*.jsonl"}, s.Input.Patterns)
	assert.Equal(t, "from-flag.jsonl", s.Output.Pass)
	assert.True(t, s.Pipeline.WriteFailOutput)
	assert.Equal(t, "json", s.Output.Summary)
	assert.Equal(t, serviceName, s.Name)
}

func TestSettingsDefaultsQueueFromWorkers(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"-i", "x.jsonl", "--pass", "p.jsonl", "--workers", "6", "--no-fail-output"}))
	s, err := loadSettings(cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, 12, s.Pipeline.QueueCapacity)
	assert.False(t, s.Pipeline.WriteFailOutput)
}

func TestVersionCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, execute([]string{"version"}, nil, &stdout, &stderr))
	assert.True(t, strings.HasPrefix(stdout.String(), "dev"), stdout.String())
}
