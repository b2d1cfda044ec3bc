package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type rosterFile struct {
	Hospital string          `json:"hospital"`
	Doctors  []doctorPayload `json:"doctors"`
}

type doctorPayload struct {
	Name    string      `json:"name"`
	Charges json.Number `json:"charges"`
	Type    string      `json:"type"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/seed-doctors <roster.json>")
		fmt.Println(`Example roster: {"hospital":"City Hospital","doctors":[{"name":"Dr. Sharma","charges":500,"type":"Cardiologist"}]}`)
		os.Exit(1)
	}

	apiURL := strings.TrimRight(os.Getenv("API_URL"), "/")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("Error reading file: %v\n", err)
		os.Exit(1)
	}
	var roster rosterFile
	if err := json.Unmarshal(data, &roster); err != nil {
		fmt.Printf("Error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	token, err := operatorToken(os.Getenv("OPERATOR_JWT_SECRET"))
	if err != nil {
		fmt.Printf("Error signing token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeding %d doctors for %s via %s\n", len(roster.Doctors), roster.Hospital, apiURL)

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}
	failed := 0
	for i, doc := range roster.Doctors {
		if err := addDoctor(ctx, client, apiURL, token, doc); err != nil {
			fmt.Printf("  [%d/%d] %s: %v\n", i+1, len(roster.Doctors), doc.Name, err)
			failed++
			continue
		}
		fmt.Printf("  [%d/%d] %s added\n", i+1, len(roster.Doctors), doc.Name)
	}

	if failed > 0 {
		fmt.Printf("%d of %d doctors failed\n", failed, len(roster.Doctors))
		os.Exit(1)
	}
	fmt.Println("Roster seeded.")
}

// operatorToken mints a short-lived operator JWT. An empty secret means the
// API runs without operator auth and no token is sent.
func operatorToken(secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", nil
	}
	claims := jwt.RegisteredClaims{
		Subject:   "seed-doctors",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func addDoctor(ctx context.Context, client *http.Client, apiURL, token string, doc doctorPayload) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/doctors", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
