package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"QueryMind/sdk/go/querymind"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(querymind.Token{AccessToken: "demo-token", ExpiresIn: 900, TokenType: "Bearer"})
	})
	mux.HandleFunc("/api/v1/queries", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(querymind.Task{
				ID:      "task-demo",
				Query:   "每个地区的平均销售额",
				Status:  "pending",
				Dataset: "sales",
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/queries/task-demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(querymind.Task{
			ID:     "task-demo",
			Query:  "每个地区的平均销售额",
			Status: "succeeded",
			Result: &querymind.ExecutionResult{
				Code:   "result = df.groupby('region')['sales'].mean()\nprint(result)",
				Output: "north 1024.5\nsouth 988.3",
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := querymind.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := client.Authenticate(ctx, querymind.Credentials{Username: "analyst", Password: "secret"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("authenticated with token %s\n", token.AccessToken)

	created, err := client.SubmitQuery(ctx, querymind.QuerySubmission{Query: "每个地区的平均销售额", Dataset: "sales"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted query %s (status=%s)\n", created.ID, created.Status)

	detail, err := client.WaitForResult(ctx, created.ID, 100*time.Millisecond)
	if err != nil {
		panic(err)
	}
	fmt.Printf("query %s finished with output:\n%s\n", detail.ID, detail.Result.Output)
}
