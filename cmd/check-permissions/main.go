package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"gridbase-engine/internal/config"

	_ "github.com/lib/pq"
)

func main() {
	var tableID = flag.String("table", "", "Filter by table_id")
	var userID = flag.String("user", "", "Filter by user_id")
	flag.Parse()

	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Cannot open database: %v", err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	// 首先查询总记录数
	var totalCount int
	err = db.QueryRow("SELECT COUNT(*) FROM table_permissions").Scan(&totalCount)
	if err != nil {
		log.Fatalf("Count query error: %v", err)
	}
	fmt.Printf("table_permissions 表中的记录数: %d\n\n", totalCount)

	if totalCount == 0 {
		fmt.Println("⚠️  table_permissions 表中没有记录！建表fan-out可能没有执行")
		return
	}

	// Build query
	query := `
		SELECT
			tp.permission_id::text,
			tp.tenant_id::text,
			tp.table_id::text,
			COALESCE(dt.table_name, 'Unknown') as table_name,
			tp.user_id::text,
			COALESCE(tu.nickname, '') as nickname,
			tp.can_read,
			tp.can_edit,
			tp.can_delete,
			tp.can_create
		FROM table_permissions tp
		LEFT JOIN data_tables dt ON dt.table_id = tp.table_id
		LEFT JOIN tenant_users tu ON tu.user_id = tp.user_id
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if *tableID != "" {
		query += fmt.Sprintf(" AND tp.table_id = $%d", argIdx)
		args = append(args, *tableID)
		argIdx++
	}

	if *userID != "" {
		query += fmt.Sprintf(" AND tp.user_id = $%d", argIdx)
		args = append(args, *userID)
		argIdx++
	}

	query += " ORDER BY dt.table_name, tu.nickname, tp.user_id"

	rows, err := db.Query(query, args...)
	if err != nil {
		log.Fatalf("Query error: %v", err)
	}
	defer rows.Close()

	fmt.Println("Table Permissions:")
	fmt.Println("Permission ID | Table Name | User | Read | Edit | Delete | Create")
	fmt.Println("--------------|------------|------|------|------|--------|--------")

	count := 0
	for rows.Next() {
		count++
		var permissionID, tenantID, tblID, tableName, usrID, nickname sql.NullString
		var canRead, canEdit, canDelete, canCreate bool

		if err := rows.Scan(&permissionID, &tenantID, &tblID, &tableName, &usrID, &nickname, &canRead, &canEdit, &canDelete, &canCreate); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}

		pid := getString(permissionID)
		if len(pid) > 12 {
			pid = pid[:12] + "..."
		}
		user := getString(nickname)
		if user == "" {
			user = getString(usrID)
			if len(user) > 12 {
				user = user[:12] + "..."
			}
		}

		fmt.Printf("%-13s | %-10s | %-4s | %-4v | %-4v | %-6v | %-6v\n",
			pid, getString(tableName), user, canRead, canEdit, canDelete, canCreate)
	}

	if err := rows.Err(); err != nil {
		log.Fatalf("Rows error: %v", err)
	}

	fmt.Printf("\nTotal table permissions: %d\n", count)

	// 列级权限（每列一行，不按用户细分）
	columnQuery := `
		SELECT
			cp.permission_id::text,
			COALESCE(dt.table_name, 'Unknown') as table_name,
			COALESCE(dc.column_name, 'Unknown') as column_name,
			cp.can_read,
			cp.can_edit
		FROM column_permissions cp
		LEFT JOIN data_tables dt ON dt.table_id = cp.table_id
		LEFT JOIN data_columns dc ON dc.column_id = cp.column_id
		WHERE 1=1
	`
	columnArgs := []interface{}{}
	if *tableID != "" {
		columnQuery += " AND cp.table_id = $1"
		columnArgs = append(columnArgs, *tableID)
	}
	columnQuery += " ORDER BY dt.table_name, dc.column_name"

	columnRows, err := db.Query(columnQuery, columnArgs...)
	if err != nil {
		log.Printf("Column permission query error: %v", err)
		return
	}
	defer columnRows.Close()

	fmt.Println("\nColumn Permissions:")
	fmt.Println("Permission ID | Table Name | Column Name | Read | Edit")
	fmt.Println("--------------|------------|-------------|------|------")
	columnCount := 0
	for columnRows.Next() {
		columnCount++
		var permissionID, tableName, columnName sql.NullString
		var canRead, canEdit bool
		if err := columnRows.Scan(&permissionID, &tableName, &columnName, &canRead, &canEdit); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}
		pid := getString(permissionID)
		if len(pid) > 12 {
			pid = pid[:12] + "..."
		}
		fmt.Printf("%-13s | %-10s | %-11s | %-4v | %-4v\n",
			pid, getString(tableName), getString(columnName), canRead, canEdit)
	}
	fmt.Printf("\nTotal column permissions: %d\n", columnCount)

	// Summary by table
	fmt.Println("\n=== Summary by Table ===")
	summaryQuery := `
		SELECT
			COALESCE(dt.table_name, 'Unknown') as table_name,
			COUNT(*) as permission_count,
			COUNT(*) FILTER (WHERE tp.can_edit) as editors,
			COUNT(*) FILTER (WHERE tp.can_read) as readers
		FROM table_permissions tp
		LEFT JOIN data_tables dt ON dt.table_id = tp.table_id
		GROUP BY dt.table_name
		ORDER BY dt.table_name
	`
	summaryRows, err := db.Query(summaryQuery)
	if err != nil {
		log.Printf("Summary query error: %v", err)
		return
	}
	defer summaryRows.Close()

	fmt.Println("Table Name | Permission Count | Editors | Readers")
	fmt.Println("-----------|------------------|---------|---------")
	for summaryRows.Next() {
		var tableName sql.NullString
		var permissionCount, editors, readers int
		if err := summaryRows.Scan(&tableName, &permissionCount, &editors, &readers); err != nil {
			log.Printf("Scan error: %v", err)
			continue
		}
		fmt.Printf("%-10s | %-16d | %-7d | %-7d\n", getString(tableName), permissionCount, editors, readers)
	}
}

func getString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return "NULL"
}
