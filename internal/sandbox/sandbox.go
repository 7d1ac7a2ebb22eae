package sandbox

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	xerrors "QueryMind/internal/errors"
)

const (
	defaultTimeout        = 30 * time.Second
	defaultMaxOutputBytes = 1 << 20
)

// Config 描述生成代码的执行环境。
type Config struct {
	PythonExec     string
	WorkingDir     string
	Timeout        time.Duration
	MaxOutputBytes int
}

// Result 记录一次代码执行的输出。
type Result struct {
	Stdout string
	Stderr string
}

// Runner 把生成的 Python 代码写入临时脚本并在子进程中执行。
type Runner struct {
	pythonExec string
	workingDir string
	timeout    time.Duration
	maxOutput  int
}

// NewRunner 创建代码执行器。
func NewRunner(cfg Config) *Runner {
	pythonExec := strings.TrimSpace(cfg.PythonExec)
	if pythonExec == "" {
		pythonExec = "python3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxOutput := cfg.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = defaultMaxOutputBytes
	}
	return &Runner{
		pythonExec: pythonExec,
		workingDir: cfg.WorkingDir,
		timeout:    timeout,
		maxOutput:  maxOutput,
	}
}

// Run 执行一段 Python 代码并返回标准输出与标准错误。
func (r *Runner) Run(ctx context.Context, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "待执行的代码为空")
	}

	scriptPath, cleanup, err := r.writeScript(code)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	command := exec.CommandContext(runCtx, r.pythonExec, scriptPath)
	if r.workingDir != "" {
		command.Dir = r.workingDir
	}

	var stdout, stderr bytes.Buffer
	command.Stdout = &limitedWriter{buf: &stdout, limit: r.maxOutput}
	command.Stderr = &limitedWriter{buf: &stderr, limit: r.maxOutput}

	runErr := command.Run()
	result := &Result{
		Stdout: strings.TrimRight(stdout.String(), "\n"),
		Stderr: strings.TrimRight(stderr.String(), "\n"),
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return result, xerrors.New(xerrors.CodeTimeout, "代码执行超时",
			xerrors.WithMetadata("timeout", r.timeout.String()),
		)
	}
	if runErr != nil {
		return result, xerrors.Wrap(xerrors.CodeSandboxFailure, runErr, "代码执行失败",
			xerrors.WithMetadata("stderr", result.Stderr),
		)
	}
	return result, nil
}

// writeScript 把代码写入临时文件，返回路径与清理函数。
func (r *Runner) writeScript(code string) (string, func(), error) {
	dir := r.workingDir
	if dir == "" {
		dir = os.TempDir()
	}
	file, err := os.CreateTemp(dir, "querymind-*.py")
	if err != nil {
		return "", nil, xerrors.Wrap(xerrors.CodeSandboxFailure, err, "创建临时脚本失败")
	}
	path := file.Name()
	cleanup := func() { _ = os.Remove(path) }

	if _, err := file.WriteString(code); err != nil {
		file.Close()
		cleanup()
		return "", nil, xerrors.Wrap(xerrors.CodeSandboxFailure, err, "写入临时脚本失败")
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, xerrors.Wrap(xerrors.CodeSandboxFailure, err, "关闭临时脚本失败")
	}
	return filepath.Clean(path), cleanup, nil
}

// limitedWriter 截断超出上限的输出，避免失控脚本撑爆内存。
type limitedWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		return len(p), nil
	}
	return w.buf.Write(p)
}
