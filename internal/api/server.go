package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"QueryMind/internal/agent"
	"QueryMind/internal/auth"
	xerrors "QueryMind/internal/errors"
	"QueryMind/internal/observability/metrics"
	"QueryMind/internal/task"
)

// Server 负责暴露 REST 接口，供外部提交分析请求并查询执行进度。
type Server struct {
	addr    string
	service *task.Service
	auth    *auth.Service
}

// Option 调整 Server 的可选能力。
type Option func(*Server)

// WithAuthService 启用身份认证与授权中间件。
func WithAuthService(svc *auth.Service) Option {
	return func(s *Server) {
		s.auth = svc
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, service *task.Service, opts ...Option) *Server {
	s := &Server{addr: addr, service: service}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 返回完整的路由表，便于测试与外部复用。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/v1/queries", s.protect("queries", map[string][]string{
		http.MethodPost: {"queries:submit"},
		http.MethodGet:  {"queries:read"},
	}, http.HandlerFunc(s.handleQueries)))
	mux.Handle("/api/v1/queries/stats", s.protect("query_stats", map[string][]string{
		http.MethodGet: {"queries:read"},
	}, http.HandlerFunc(s.handleQueryStats)))
	mux.Handle("/api/v1/queries/", s.protect("query_detail", map[string][]string{
		http.MethodGet: {"queries:read"},
	}, http.HandlerFunc(s.handleQueryDetail)))
	mux.HandleFunc("/api/v1/auth/token", s.handleToken)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// protect 为业务路由套上认证中间件与请求指标采集。
func (s *Server) protect(name string, perms map[string][]string, next http.Handler) http.Handler {
	handler := instrument(name, next)
	if s.auth == nil {
		return handler
	}
	middleware := s.auth.Middleware(auth.MiddlewareConfig{
		RequiredPermissions: perms,
		AuditEvent:          name,
	})
	return middleware(handler)
}

func (s *Server) handleQueries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitQuery(w, r)
	case http.MethodGet:
		s.handleListQueries(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// submitRequest 描述提交分析任务的请求体。
type submitRequest struct {
	ID       string         `json:"id,omitempty"`
	Query    string         `json:"query"`
	Dataset  string         `json:"dataset,omitempty"`
	Schema   string         `json:"schema,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// handleSubmitQuery 接收自然语言问题并异步入队执行。
func (s *Server) handleSubmitQuery(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query 不能为空", http.StatusBadRequest)
		return
	}

	created, err := s.service.Submit(r.Context(), agent.QueryRequest{
		ID:       req.ID,
		Query:    req.Query,
		Dataset:  req.Dataset,
		Schema:   req.Schema,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeTaskError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, created)
}

// handleListQueries 按状态、关键字等条件分页列出任务。
func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tasks, err := s.service.List(r.Context(), opts...)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// handleQueryDetail 查询单个任务的当前状态与结果。
func (s *Server) handleQueryDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/queries/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "缺少任务 ID", http.StatusBadRequest)
		return
	}

	found, err := s.service.Get(r.Context(), id)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// handleQueryStats 汇总各状态任务数量，用于面板展示。
func (s *Server) handleQueryStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "任务服务未初始化", http.StatusServiceUnavailable)
		return
	}

	opts, err := listOptionsFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stats, err := s.service.Stats(r.Context(), opts...)
	if err != nil {
		writeTaskError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleToken 为客户端签发访问令牌。认证关闭时返回 404。
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil || s.auth.Mode() == auth.ModeDisabled {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}

	var req auth.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}
	pair, err := s.auth.Authenticate(r.Context(), req)
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, auth.ErrUnsupportedGrant) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listOptionsFromQuery 将 URL 查询参数翻译为任务查询选项。
func listOptionsFromQuery(r *http.Request) ([]task.ListOption, error) {
	var opts []task.ListOption
	values := r.URL.Query()

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return nil, errors.New("limit 参数无效")
		}
		opts = append(opts, task.WithLimit(limit))
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, errors.New("offset 参数无效")
		}
		opts = append(opts, task.WithOffset(offset))
	}
	if raw := values.Get("status"); raw != "" {
		var statuses []task.Status
		for _, part := range strings.Split(raw, ",") {
			status := task.Status(strings.TrimSpace(part))
			if !task.IsValidStatus(status) {
				return nil, errors.New("status 参数无效")
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if raw := values.Get("updated_since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.New("updated_since 需为 RFC3339 时间")
		}
		opts = append(opts, task.WithUpdatedSince(ts))
	}
	if raw := values.Get("q"); raw != "" {
		opts = append(opts, task.WithQuery(raw))
	}
	return opts, nil
}

// writeTaskError 将任务领域错误映射为 HTTP 状态码。
func writeTaskError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case task.IsTaskError(err, task.CodeTaskNotFound):
		status = http.StatusNotFound
	case task.IsTaskError(err, task.CodeTaskConflict):
		status = http.StatusConflict
	case task.IsTaskError(err, task.CodeTaskValidation):
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]string{"error": err.Error()}
	if code := xerrors.CodeOf(err); code != "" {
		payload["code"] = string(code)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// instrument 记录请求耗时与状态码指标。
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		metrics.ObserveHTTPRequest(name, r.Method, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext 让处理器感知服务整体的生命周期取消信号。
func withContext(ctx context.Context, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务正在关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		next.ServeHTTP(w, r)
	})
}
