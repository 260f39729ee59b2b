package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"scribe/internal/batch"
	"scribe/internal/services"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	inputDir   string
	outputDir  string
	secretsDir string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		inputDir:   filepath.Join(base, "input"),
		outputDir:  filepath.Join(base, "output"),
		secretsDir: filepath.Join(base, "secrets"),
	}
	cfg := fmt.Sprintf("[ledger]\npath = %q\n\n[logging]\nlevel = \"error\"\n", filepath.Join(base, "history.db"))
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o644))
	require.NoError(t, os.MkdirAll(env.inputDir, 0o755))
	require.NoError(t, os.MkdirAll(env.secretsDir, 0o755))
	return env
}

func (e *cliTestEnv) writeCredentials(t *testing.T) {
	t.Helper()
	content := "API_KEY=secret\nAPI_ENDPOINT=https://example.openai.azure.com\nAPI_DEPLOYMENT=whisper\n"
	require.NoError(t, os.WriteFile(filepath.Join(e.secretsDir, ".env"), []byte(content), 0o600))
}

func (e *cliTestEnv) addFile(t *testing.T, rel string) {
	t.Helper()
	path := filepath.Join(e.inputDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
}

func (e *cliTestEnv) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", e.configPath}, args...)
	code := execute(full, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func (e *cliTestEnv) batchArgs(extra ...string) []string {
	return append([]string{"--input-dir", e.inputDir, "--output-dir", e.outputDir, "--secrets-dir", e.secretsDir}, extra...)
}

func TestUsageErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing input dir", []string{"--secrets-dir", env.secretsDir}},
		{"missing secrets dir", []string{"--input-dir", env.inputDir}},
		{"unknown flag", env.batchArgs("--bogus")},
		{"bad device", env.batchArgs("--device", "tpu")},
		{"unsupported language", env.batchArgs("--speech-to-text", "fr")},
		{"negative jobs", env.batchArgs("--jobs", "-1")},
		{"stray argument", append(env.batchArgs(), "extra")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := env.run(tt.args...)
			require.Equal(t, batch.ExitUsage, code, stderr)
			require.Contains(t, stderr, "scribe --help")
		})
	}
}

func TestMissingCredentialsAbortBeforeAnyJob(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addFile(t, "lesson01/lesson01.mp4")

	code, _, stderr := env.run(env.batchArgs("--detach-audio")...)
	require.Equal(t, batch.ExitFailed, code)
	require.Contains(t, stderr, "credential")
	require.NoDirExists(t, filepath.Join(env.outputDir, "lesson01"))
}

func TestEmptyBatchSucceedsAndIsRecorded(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeCredentials(t)

	code, stdout, stderr := env.run(env.batchArgs()...)
	require.Equal(t, batch.ExitOK, code, stderr)
	require.Contains(t, stdout, "No job directories found")

	code, stdout, stderr = env.run("history")
	require.Equal(t, batch.ExitOK, code, stderr)
	require.Contains(t, stdout, "finished")
	require.Contains(t, stdout, env.inputDir)
}

func TestStructuralFailuresFailTheRun(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeCredentials(t)
	env.addFile(t, "empty/readme.txt")
	env.addFile(t, "double/a.mp4")
	env.addFile(t, "double/b.mkv")

	code, stdout, stderr := env.run(env.batchArgs("--speech-to-text", "en")...)
	require.Equal(t, batch.ExitFailed, code, stderr)
	require.Contains(t, stdout, "discover")
	require.Contains(t, stdout, "no video file")
	require.Contains(t, stdout, "2 video files")
	require.Contains(t, stdout, "0 ok, 0 partial, 2 failed, 0 skipped")

	code, stdout, _ = env.run("history", "--json")
	require.Equal(t, batch.ExitOK, code)
	require.Contains(t, stdout, `"failed": 2`)
	require.Contains(t, stdout, `"flags": "--speech-to-text en"`)
}

func TestHistoryWithoutRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	code, stdout, _ := env.run("history")
	require.Equal(t, batch.ExitOK, code)
	require.Contains(t, stdout, "No runs recorded yet")
}

func TestConfigInit(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "conf", "scribe.toml")

	code, stdout, stderr := env.run("config", "init", "--path", target)
	require.Equal(t, batch.ExitOK, code, stderr)
	require.Contains(t, stdout, target)
	require.FileExists(t, target)

	code, _, stderr = env.run("config", "init", "--path", target)
	require.Equal(t, batch.ExitFailed, code)
	require.Contains(t, stderr, "already exists")

	var out, errOut bytes.Buffer
	code = execute([]string{"--config", target, "config", "validate"}, &out, &errOut)
	require.Equal(t, batch.ExitOK, code, errOut.String())
	require.Contains(t, out.String(), "Configuration valid")
}

func TestPrepareCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	env.addFile(t, "My Lecture.mp4")
	env.addFile(t, "notes.txt")
	prepared := filepath.Join(env.baseDir, "prepared")

	code, stdout, stderr := env.run("prepare", "--input-dir", env.inputDir, "--output-dir", prepared)
	require.Equal(t, batch.ExitOK, code, stderr)
	require.Contains(t, stdout, "Prepared 1 video(s)")
	require.FileExists(t, filepath.Join(prepared, "My_Lecture", "My Lecture.mp4"))

	code, _, _ = env.run("prepare", "--input-dir", env.inputDir)
	require.Equal(t, batch.ExitUsage, code)
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		out  string
	}{
		{"nil", nil, batch.ExitOK, ""},
		{"silent exit code", withExitCode(batch.ExitPartial, nil), batch.ExitPartial, ""},
		{"usage", usageErrorf("--input-dir is required"), batch.ExitUsage, "Error: --input-dir is required"},
		{"marked", services.Wrap(services.ErrCredential, "credentials", "locate", "no credential file", nil), batch.ExitFailed, "Hint: check the credential file"},
		{"plain", errors.New("boom"), batch.ExitFailed, "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.Equal(t, tt.code, reportError(&buf, tt.err))
			if tt.out == "" {
				require.Empty(t, buf.String())
			} else {
				require.Contains(t, buf.String(), tt.out)
			}
		})
	}
}

func TestLogsCommandFiltersRun(t *testing.T) {
	env := setupCLITestEnv(t)
	logPath := filepath.Join(env.baseDir, "scribe.log")
	cfg := fmt.Sprintf("[ledger]\npath = %q\n\n[logging]\nlevel = \"info\"\nfile = %q\n", filepath.Join(env.baseDir, "history.db"), logPath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o644))
	env.writeCredentials(t)

	code, _, stderr := env.run(env.batchArgs()...)
	require.Equal(t, batch.ExitOK, code, stderr)

	code, stdout, stderr := env.run("logs", "--lines", "5")
	require.Equal(t, batch.ExitOK, code, stderr)
	require.Contains(t, stdout, "batch finished")

	code, stdout, _ = env.run("logs", "--run", "no-such-run")
	require.Equal(t, batch.ExitOK, code)
	require.Empty(t, stdout)
}
