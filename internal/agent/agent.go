package agent

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	xerrors "QueryMind/internal/errors"
	"QueryMind/internal/knowledge"
	"QueryMind/internal/llm"
	"QueryMind/internal/memory"
	"QueryMind/internal/pipeline"
	"QueryMind/internal/prompts"
	"QueryMind/internal/sandbox"
	"QueryMind/internal/storage/mysql"
)

// QueryRequest 描述了一次自然语言分析请求。
type QueryRequest struct {
	ID       string         `json:"id,omitempty"`
	Query    string         `json:"query"`
	Dataset  string         `json:"dataset"`
	Schema   string         `json:"schema,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryResult 汇总代码生成与执行得到的结果。
type QueryResult struct {
	Query        string `json:"query"`
	Dataset      string `json:"dataset"`
	Code         string `json:"code"`
	Output       string `json:"output"`
	Observations string `json:"observations"`
	CreatedAt    int64  `json:"created_at"`
}

// CodeRunner 抽象生成代码的执行器，便于测试替换。
type CodeRunner interface {
	Run(ctx context.Context, code string) (*sandbox.Result, error)
}

// Agent 协调代码生成与执行，是系统的业务核心。
type Agent struct {
	model       llm.LLM
	runner      CodeRunner
	storage     mysql.AnalysisRepository
	mem         *memory.Memory
	memoryDepth int
	knowledge   knowledge.Provider
	llmTimeout  time.Duration
	maxRetries  int
}

// Option 定义可选的 Agent 配置。
type Option func(*Agent)

// defaultMemoryDepth 是构建提示词时可参考的历史轮数的默认值。
const defaultMemoryDepth = 5

// WithMemoryDepth 设置构建提示词时可参考的历史轮数。
func WithMemoryDepth(depth int) Option {
	return func(a *Agent) {
		a.memoryDepth = depth
	}
}

// WithKnowledgeProvider 配置数据集说明库，用于在生成代码前补充上下文。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(a *Agent) {
		a.knowledge = provider
	}
}

// WithLLMTimeout 设置调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(a *Agent) {
		if timeout <= 0 {
			a.llmTimeout = 0
			return
		}
		a.llmTimeout = timeout
	}
}

// WithMaxRetries 设置代码执行失败后重新生成的次数。
func WithMaxRetries(retries int) Option {
	return func(a *Agent) {
		if retries < 0 {
			retries = 0
		}
		a.maxRetries = retries
	}
}

// WithAgentDescription 覆盖会话记忆中的助手角色描述。
func WithAgentDescription(description string) Option {
	return func(a *Agent) {
		if strings.TrimSpace(description) != "" {
			a.mem = memory.New(
				memory.WithWindowSize(a.memoryDepth),
				memory.WithAgentDescription(description),
			)
		}
	}
}

// New 创建一个 Agent。
func New(model llm.LLM, runner CodeRunner, repo mysql.AnalysisRepository, opts ...Option) *Agent {
	ag := &Agent{
		model:       model,
		runner:      runner,
		storage:     repo,
		memoryDepth: defaultMemoryDepth,
		llmTimeout:  0,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(ag)
		}
	}
	if ag.memoryDepth <= 0 {
		ag.memoryDepth = defaultMemoryDepth
	}
	if ag.mem == nil {
		ag.mem = memory.New(memory.WithWindowSize(ag.memoryDepth))
	}
	return ag
}

// Execute 根据自然语言问题生成 Python 代码并执行。
func (a *Agent) Execute(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if a.model == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "分析问题不能为空")
	}

	hints, observations := a.collectKnowledge(req.Query, req.Dataset)

	pctx := pipeline.New(a.mem).WithDataset(req.Dataset)

	code, output, runObservation, err := a.generateAndRun(ctx, req, hints, pctx)
	if err != nil {
		return nil, err
	}
	observations = appendObservation(observations, runObservation)
	if strings.TrimSpace(observations) == "" {
		observations = "代码一次生成并执行成功"
	}

	// 会话记忆只保留问题与最终代码，输出可能过长。
	a.mem.AddUser(req.Query)
	a.mem.AddAssistant(code)

	now := time.Now().Unix()
	result := &QueryResult{
		Query:        req.Query,
		Dataset:      req.Dataset,
		Code:         code,
		Output:       output,
		Observations: observations,
		CreatedAt:    now,
	}

	if a.storage != nil {
		record := &mysql.AnalysisRecord{
			Query:     req.Query,
			Dataset:   req.Dataset,
			Code:      code,
			Output:    output,
			Observes:  observations,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := a.storage.Create(ctx, record); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存分析记录失败")
		}
	}

	return result, nil
}

// generateAndRun 执行“生成代码、运行、失败后带错误重试”的主循环。
func (a *Agent) generateAndRun(ctx context.Context, req QueryRequest, hints []string, pctx *pipeline.Context) (code, output, observation string, err error) {
	attempts := a.maxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		instruction := prompts.GenerateCodePrompt{
			Query:       req.Query,
			DatasetName: req.Dataset,
			Schema:      req.Schema,
			Hints:       hints,
		}

		llmCtx := ctx
		var cancel context.CancelFunc
		if a.llmTimeout > 0 {
			llmCtx, cancel = context.WithTimeout(ctx, a.llmTimeout)
		}
		code, err = llm.GenerateCode(llmCtx, a.model, instruction, pctx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if stdErrors.Is(err, context.DeadlineExceeded) {
				return "", "", "", xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
			}
			return "", "", "", xerrors.Wrap(xerrors.CodeExecutorFailure, err, "生成分析代码失败")
		}

		if a.runner == nil {
			return code, "", "未配置代码执行器，仅返回生成的代码", nil
		}

		result, runErr := a.runner.Run(ctx, code)
		if runErr == nil {
			return code, result.Stdout, observation, nil
		}
		if stdErrors.Is(runErr, context.Canceled) {
			return "", "", "", runErr
		}

		observation = appendObservation(observation, fmt.Sprintf("第 %d 次执行失败: %v", attempt+1, runErr))
		if attempt+1 >= attempts {
			return code, "", "", xerrors.Wrap(xerrors.CodeSandboxFailure, runErr, "代码执行重试次数耗尽",
				xerrors.WithMetadata("attempts", strconv.Itoa(attempts)),
			)
		}
		// 把失败原因回灌给模型，下一轮提示它修正。
		hints = append(hints, fmt.Sprintf("Previous attempt failed with: %v. Fix the code.", runErr))
	}
	return code, output, observation, err
}

// History 获取最近的分析记录。
func (a *Agent) History(ctx context.Context, limit int) ([]QueryResult, error) {
	if a.storage == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置分析记录仓库")
	}

	records, err := a.storage.ListLatest(ctx, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询分析记录失败")
	}

	results := make([]QueryResult, 0, len(records))
	for _, record := range records {
		results = append(results, QueryResult{
			Query:        record.Query,
			Dataset:      record.Dataset,
			Code:         record.Code,
			Output:       record.Output,
			Observations: record.Observes,
			CreatedAt:    record.CreatedAt,
		})
	}
	return results, nil
}

// Memory 返回会话记忆，供上层在多轮对话间复用。
func (a *Agent) Memory() *memory.Memory {
	return a.mem
}

// appendObservation 将新的观察结果追加到现有的观察字符串中。
func appendObservation(existing, next string) string {
	next = strings.TrimSpace(next)
	if next == "" {
		return existing
	}
	if strings.TrimSpace(existing) == "" {
		return next
	}
	return existing + "\n" + next
}

// collectKnowledge 从说明库中检索相关内容以供提示词引用。
func (a *Agent) collectKnowledge(question, dataset string) ([]string, string) {
	if a.knowledge == nil {
		return nil, ""
	}

	snippets := a.knowledge.Query(question, dataset)
	if len(snippets) == 0 {
		return nil, ""
	}

	hints := make([]string, 0, len(snippets))
	titles := make([]string, 0, len(snippets))
	for _, snippet := range snippets {
		content := strings.TrimSpace(snippet.Content)
		if content == "" {
			continue
		}
		if title := strings.TrimSpace(snippet.Title); title != "" {
			hints = append(hints, fmt.Sprintf("%s: %s", title, content))
			titles = append(titles, title)
		} else {
			hints = append(hints, content)
		}
	}

	observation := ""
	if len(titles) > 0 {
		observation = fmt.Sprintf("说明库提示: %s", strings.Join(titles, "；"))
	}
	return hints, observation
}
