package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/THEAllStarsolver/ReWear/pkg/auth"
	pool "github.com/THEAllStarsolver/ReWear/pkg/grpc"
)

const (
	apiBase    = "http://localhost:8080/api"
	grpcTarget = "localhost:50051"
	// 必須和 server 的 auth_secret 一致
	devSecret = "rewear-dev-secret"

	// 並發兌換人數：正確的帳本下恰好一人成功
	Contenders = 200
)

func main() {
	// 1. gRPC health check
	conns := pool.NewPool()
	defer conns.Close()

	conn, err := conns.Get(grpcTarget)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		log.Fatalf("health check failed: %v", err)
	}
	log.Printf("health: %s", resp.Status)

	verifier := auth.NewVerifier(devSecret)
	adminToken := mustToken(verifier, "smoke-admin", auth.RoleAdmin)
	ownerToken := mustToken(verifier, "smoke-owner", auth.RoleUser)

	// 2. 建立一筆 100 點的刊登
	var created struct {
		ID string `json:"id"`
	}
	status, body := do("POST", apiBase+"/listings", ownerToken, map[string]any{
		"title":        "smoke test jacket",
		"points_value": 100,
	})
	if status != http.StatusCreated {
		log.Fatalf("create listing: status %d: %s", status, body)
	}
	if err := json.Unmarshal(body, &created); err != nil {
		log.Fatalf("decode listing: %v", err)
	}
	log.Printf("created listing %s", created.ID)

	// 3. 發點給所有參賽者
	for i := 0; i < Contenders; i++ {
		userID := fmt.Sprintf("smoke-user-%d", i)
		status, body := do("POST", apiBase+"/accounts/"+userID+"/credit", adminToken, map[string]any{
			"points": 100,
		})
		if status != http.StatusOK {
			log.Fatalf("credit %s: status %d: %s", userID, status, body)
		}
	}

	// 4. 並發兌換同一筆刊登，驗證恰好一人成功、不重複扣點
	var success, conflict, other int64
	var wg sync.WaitGroup
	wg.Add(Contenders)

	startTime := time.Now()
	for i := 0; i < Contenders; i++ {
		go func(idx int) {
			defer wg.Done()
			token := mustToken(verifier, fmt.Sprintf("smoke-user-%d", idx), auth.RoleUser)
			status, _ := do("POST", apiBase+"/listings/"+created.ID+"/redeem", token, nil)
			switch status {
			case http.StatusOK:
				atomic.AddInt64(&success, 1)
			case http.StatusConflict:
				atomic.AddInt64(&conflict, 1)
			default:
				atomic.AddInt64(&other, 1)
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(startTime)

	fmt.Printf("Completed %d concurrent redeems in %v\n", Contenders, elapsed)
	fmt.Printf("success=%d conflict=%d other=%d\n", success, conflict, other)
	if success != 1 {
		log.Fatalf("expected exactly one successful redeem, got %d", success)
	}
	fmt.Println("OK: exactly one redeem succeeded")
}

func mustToken(verifier *auth.Verifier, userID string, role auth.Role) string {
	token, err := verifier.Issue(userID, role, time.Hour)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	return token
}

// do 發出一個帶 bearer token 的 JSON 請求
func do(method, url, token string, payload any) (int, []byte) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("marshal payload: %v", err)
		}
		reqBody = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body
}
