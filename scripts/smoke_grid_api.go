//go:build ignore
// +build ignore

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// 冒烟配置
var (
	baseURL  = getEnv("BASE_URL", "http://localhost:8080")
	tenantID = getEnv("TENANT_ID", "00000000-0000-0000-0000-000000000001")
	userID   = getEnv("USER_ID", "00000000-0000-0000-0000-000000000002")
	role     = getEnv("TENANT_ROLE", "ADMIN")
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	fmt.Println("==========================================")
	fmt.Println("gridbase-engine API 冒烟")
	fmt.Println("==========================================")
	fmt.Printf("Base URL: %s\n", baseURL)
	fmt.Printf("Tenant ID: %s\n", tenantID)
	fmt.Printf("User ID: %s\n", userID)
	fmt.Printf("Role: %s\n", role)
	fmt.Println()

	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	// 冒烟 1: 建表
	tableID := testCreateTable(client)
	if tableID == "" {
		fmt.Println("建表失败，后续步骤跳过")
		return
	}

	// 冒烟 2: 建列
	nameColumnID := testCreateColumn(client, tableID, "Name", "string")
	amountColumnID := testCreateColumn(client, tableID, "Amount", "number")

	// 冒烟 3: 建行
	testCreateRow(client, tableID, nameColumnID, amountColumnID)

	// 冒烟 4: 查行
	testListRows(client, tableID)

	// 冒烟 5: 看板聚合
	testWidgetQuery(client, tableID, amountColumnID)

	fmt.Println("==========================================")
	fmt.Println("冒烟完成")
	fmt.Println("==========================================")
}

func testCreateTable(client *http.Client) string {
	fmt.Println("冒烟 1: 建表")
	fmt.Println("----------------------------------------")
	url := fmt.Sprintf("%s/admin/api/v1/tables", baseURL)
	payload := fmt.Sprintf(`{"name": "Smoke %d"}`, time.Now().Unix())
	result := makeRequest(client, "POST", url, bytes.NewBufferString(payload))
	fmt.Println()

	if result == nil {
		return ""
	}
	if data, ok := result["result"].(map[string]any); ok {
		if id, ok := data["id"].(string); ok {
			return id
		}
	}
	return ""
}

func testCreateColumn(client *http.Client, tableID, name, columnType string) string {
	fmt.Printf("冒烟 2: 建列 (%s %s)\n", name, columnType)
	fmt.Println("----------------------------------------")
	url := fmt.Sprintf("%s/admin/api/v1/tables/%s/columns", baseURL, tableID)
	payload := fmt.Sprintf(`{"name": %q, "type": %q}`, name, columnType)
	result := makeRequest(client, "POST", url, bytes.NewBufferString(payload))
	fmt.Println()

	if result == nil {
		return ""
	}
	if data, ok := result["result"].(map[string]any); ok {
		if id, ok := data["id"].(string); ok {
			return id
		}
	}
	return ""
}

func testCreateRow(client *http.Client, tableID, nameColumnID, amountColumnID string) {
	fmt.Println("冒烟 3: 建行")
	fmt.Println("----------------------------------------")
	url := fmt.Sprintf("%s/grid/api/v1/tables/%s/rows", baseURL, tableID)
	payload := fmt.Sprintf(`{"cells": [{"columnId": %q, "value": "smoke"}, {"columnId": %q, "value": 42}]}`,
		nameColumnID, amountColumnID)
	makeRequest(client, "POST", url, bytes.NewBufferString(payload))
	fmt.Println()
}

func testListRows(client *http.Client, tableID string) {
	fmt.Println("冒烟 4: 查行 (page=1&size=10)")
	fmt.Println("----------------------------------------")
	url := fmt.Sprintf("%s/grid/api/v1/tables/%s/rows?page=1&size=10", baseURL, tableID)
	makeRequest(client, "GET", url, nil)
	fmt.Println()
}

func testWidgetQuery(client *http.Client, tableID, amountColumnID string) {
	fmt.Println("冒烟 5: 看板聚合 (SUM Amount)")
	fmt.Println("----------------------------------------")
	url := fmt.Sprintf("%s/grid/api/v1/widgets/query", baseURL)
	payload := fmt.Sprintf(`{"tableId": %q, "widgetType": "metric", "dataSource": {"column": %q, "aggregation": "SUM"}}`, tableID, amountColumnID)
	makeRequest(client, "POST", url, bytes.NewBufferString(payload))
	fmt.Println()
}

func makeRequest(client *http.Client, method, url string, body io.Reader) map[string]any {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		fmt.Printf("❌ 创建请求失败: %v\n", err)
		return nil
	}

	req.Header.Set("X-User-Id", userID)
	req.Header.Set("X-Tenant-Id", tenantID)
	req.Header.Set("X-Tenant-Role", role)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("❌ 请求失败: %v\n", err)
		return nil
	}
	defer resp.Body.Close()

	fmt.Printf("状态码: %d\n", resp.StatusCode)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("❌ 读取响应失败: %v\n", err)
		return nil
	}

	// 尝试格式化 JSON
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, respBody, "", "  "); err != nil {
		fmt.Printf("响应内容（非 JSON）:\n%s\n", string(respBody))
		return nil
	}

	fmt.Printf("响应内容:\n%s\n", prettyJSON.String())

	// 解析响应检查结构
	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil
	}
	if code, ok := result["code"].(float64); ok {
		if code == 2000 {
			fmt.Println("✅ 请求成功")
		} else {
			fmt.Printf("⚠️  请求返回错误码: %.0f\n", code)
			if msg, ok := result["message"].(string); ok {
				fmt.Printf("错误信息: %s\n", msg)
			}
		}
	}
	return result
}
