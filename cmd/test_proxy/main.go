package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// 手动冒烟：向本地代理发一个流式请求，观察透传的 SSE 字节
func main() {
	url := "http://localhost:8000/v1/chat/completions"
	key := os.Getenv("VARTOOLBOX_SERVER_KEY")

	payload := map[string]any{
		"model":  "gemini-2.5-flash",
		"stream": true,
		"messages": []map[string]string{
			{"role": "system", "content": "今天是{{Date}} {{Today}}，{{Festival}}。{{WeatherInfo}}"},
			{"role": "user", "content": "今天适合出门吗？"},
		},
	}
	jsonData, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("请求失败:", err)
		return
	}
	defer resp.Body.Close()

	fmt.Println("连接建立，开始接收流...")
	fmt.Println("--------------------------------")

	scanner := bufio.NewScanner(resp.Body)
	var fullBuffer strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fmt.Printf("[收到原始数据] %s\n", line)
		if strings.HasPrefix(line, "data:") {
			fullBuffer.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			fullBuffer.WriteString("\n")
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Println("读取流错误:", err)
	}

	fmt.Println("--------------------------------")
	fmt.Println("最终拼接结果:")
	fmt.Println(fullBuffer.String())
}
