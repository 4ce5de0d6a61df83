package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatalf("Usage: %s <bearer-token> <container> [query] [server-addr]", os.Args[0])
	}

	token := os.Args[1]
	container := os.Args[2]

	query := ""
	if len(os.Args) > 3 {
		query = os.Args[3]
	}

	serverAddr := "http://localhost:8123"
	if len(os.Args) > 4 {
		serverAddr = os.Args[4]
	}

	payload, err := json.Marshal(map[string]string{
		"containerName": container,
		"query":         query,
	})
	if err != nil {
		log.Fatalf("Failed to encode payload: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, serverAddr+"/containers/query", bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode == http.StatusOK {
		fmt.Printf("✅ Query against %q succeeded\n\n", container)
	} else {
		fmt.Printf("❌ Query against %q failed with status %d\n\n", container, resp.StatusCode)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(body))
	}
}
