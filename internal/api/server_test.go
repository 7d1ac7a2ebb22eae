package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"QueryMind/internal/agent"
	"QueryMind/internal/task"
)

func agentRequest(query string) agent.QueryRequest {
	return agent.QueryRequest{Query: query, Dataset: "sales"}
}

func newTestServer(t *testing.T) (*Server, *task.Service) {
	t.Helper()
	store := task.NewMemoryStore()
	queue := task.NewMemoryQueue(16)
	service := task.NewService(store, queue, 1)
	t.Cleanup(func() {
		_ = service.Close()
	})
	return NewServer("127.0.0.1:0", service), service
}

func TestHandleSubmitQuery(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	body := strings.NewReader(`{"query":"统计订单总量","dataset":"orders","schema":"id INT, amount DECIMAL","metadata":{"source":"api","priority":3}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", body)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusAccepted {
		t.Fatalf("期望 202, 实际 %d: %s", recorder.Code, recorder.Body.String())
	}
	var created task.Task
	if err := json.NewDecoder(recorder.Body).Decode(&created); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("响应缺少任务 ID")
	}
	if created.Status != task.StatusPending {
		t.Fatalf("期望 pending 状态, 实际 %s", created.Status)
	}
	if created.Schema != "id INT, amount DECIMAL" {
		t.Fatalf("任务未保留 schema: %q", created.Schema)
	}
	if created.Metadata["source"] != "api" || created.Metadata["priority"] != float64(3) {
		t.Fatalf("任务未保留 metadata: %+v", created.Metadata)
	}
}

func TestHandleSubmitQueryRejectsEmptyBody(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/queries", strings.NewReader(`{"query":"  "}`))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("期望 400, 实际 %d", recorder.Code)
	}
}

func TestHandleQueryDetail(t *testing.T) {
	server, service := newTestServer(t)
	handler := server.Handler()

	created, err := service.Submit(context.Background(), agentRequest("每个地区的平均销售额"))
	if err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queries/"+created.ID, nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d: %s", recorder.Code, recorder.Body.String())
	}
	var got task.Task
	if err := json.NewDecoder(recorder.Body).Decode(&got); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("期望任务 %s, 实际 %s", created.ID, got.ID)
	}
}

func TestHandleQueryDetailErrors(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	cases := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "方法不允许", method: http.MethodDelete, path: "/api/v1/queries/abc", status: http.StatusMethodNotAllowed},
		{name: "缺少任务 ID", method: http.MethodGet, path: "/api/v1/queries/", status: http.StatusBadRequest},
		{name: "任务不存在", method: http.MethodGet, path: "/api/v1/queries/missing", status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, req)
			if recorder.Code != tc.status {
				t.Fatalf("期望 %d, 实际 %d", tc.status, recorder.Code)
			}
		})
	}
}

func TestHandleListQueriesWithFilters(t *testing.T) {
	server, service := newTestServer(t)
	handler := server.Handler()

	if _, err := service.Submit(context.Background(), agentRequest("销量前十的商品")); err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}
	if _, err := service.Submit(context.Background(), agentRequest("库存告警明细")); err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queries?status=pending&q=销量&limit=10", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload struct {
		Tasks []task.Task `json:"tasks"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if len(payload.Tasks) != 1 {
		t.Fatalf("期望过滤出 1 个任务, 实际 %d", len(payload.Tasks))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/queries?status=bogus", nil)
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("无效 status 期望 400, 实际 %d", recorder.Code)
	}
}

func TestHandleQueryStats(t *testing.T) {
	server, service := newTestServer(t)
	handler := server.Handler()

	if _, err := service.Submit(context.Background(), agentRequest("按月统计注册用户")); err != nil {
		t.Fatalf("提交任务失败: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/queries/stats", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d: %s", recorder.Code, recorder.Body.String())
	}
	var stats task.TaskStats
	if err := json.NewDecoder(recorder.Body).Decode(&stats); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	if stats.Total != 1 {
		t.Fatalf("期望统计到 1 个任务, 实际 %d", stats.Total)
	}
}

func TestHandleHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("期望 200, 实际 %d", recorder.Code)
	}
}
