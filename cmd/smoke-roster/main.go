// Command smoke-roster exercises a running rosterd-api end to end: admin
// login, student registration, the exclusive-session protocol, logout and
// relogin.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("ROSTERD_ADDR")
	if base == "" {
		base = "http://localhost:8080"
	}
	adminUser := os.Getenv("ROSTERD_ADMIN_USER")
	adminPass := os.Getenv("ROSTERD_ADMIN_PASSWORD")
	if adminUser == "" || adminPass == "" {
		log.Fatal("ROSTERD_ADMIN_USER and ROSTERD_ADMIN_PASSWORD are required")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	suffix := rand.New(rand.NewSource(time.Now().UnixNano())).Intn(1_000_000)
	studentID := fmt.Sprintf("smoke%06d", suffix)

	adminToken := mustLogin(client, base, adminUser, adminPass)

	// Register a throwaway student.
	status, _ := request(client, http.MethodPost, base+"/v1/accounts", adminToken, map[string]any{
		"name":        "Smoke Test",
		"user_id":     studentID,
		"roll_number": "SMK" + studentID,
		"password":    "smoke-pass",
		"role":        "student",
		"batch":       "N",
		"semester":    1,
	})
	if status != http.StatusCreated {
		log.Fatalf("register student: status %d", status)
	}

	studentToken := mustLogin(client, base, studentID, "smoke-pass")

	// A second login must be refused while the first session is live.
	if tok, status := login(client, base, studentID, "smoke-pass"); tok != "" {
		log.Fatalf("second login unexpectedly succeeded")
	} else if status != http.StatusUnauthorized {
		log.Fatalf("second login: expected 401, got %d", status)
	}

	// Logout releases the claim and relogin works.
	status, _ = request(client, http.MethodDelete, base+"/v1/sessions", studentToken, nil)
	if status != http.StatusOK {
		log.Fatalf("logout: status %d", status)
	}
	relogin := mustLogin(client, base, studentID, "smoke-pass")
	status, _ = request(client, http.MethodDelete, base+"/v1/sessions", relogin, nil)
	if status != http.StatusOK {
		log.Fatalf("second logout: status %d", status)
	}

	fmt.Printf("✅ rosterd smoke test passed: student=%s\n", studentID)
}

func mustLogin(client *http.Client, base, userID, password string) string {
	token, status := login(client, base, userID, password)
	if token == "" {
		log.Fatalf("login %s: status %d", userID, status)
	}
	return token
}

func login(client *http.Client, base, userID, password string) (string, int) {
	status, body := request(client, http.MethodPost, base+"/v1/sessions", "", map[string]any{
		"user_id":   userID,
		"password":  password,
		"system_id": "smoke-roster",
	})
	if status != http.StatusOK {
		return "", status
	}
	token, _ := body["token"].(string)
	return token, status
}

func request(client *http.Client, method, url, token string, payload map[string]any) (int, map[string]any) {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}
