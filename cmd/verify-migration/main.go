package main

import (
	"database/sql"
	"fmt"
	"log"

	"gridbase-engine/internal/config"

	_ "github.com/lib/pq"
)

// 迁移核对清单：substrate表 → 必须存在的列
var requiredColumns = map[string][]string{
	"tenants":            {"tenant_id", "tenant_name", "domain", "status", "metadata"},
	"workspaces":         {"workspace_id", "tenant_id", "workspace_name", "is_default"},
	"tenant_users":       {"user_id", "tenant_id", "role", "status"},
	"data_tables":        {"table_id", "tenant_id", "workspace_id", "table_name", "is_public", "is_protected", "protected_type"},
	"data_columns":       {"column_id", "tenant_id", "table_id", "column_name", "column_type", "required", "is_primary", "is_unique", "auto_increment", "position", "reference_table_id", "custom_options", "semantic_type"},
	"data_rows":          {"row_id", "tenant_id", "table_id"},
	"data_cells":         {"cell_id", "tenant_id", "table_id", "row_id", "column_id", "value"},
	"table_permissions":  {"permission_id", "tenant_id", "table_id", "user_id", "can_read", "can_edit", "can_delete", "can_create"},
	"column_permissions": {"permission_id", "tenant_id", "table_id", "column_id", "can_read", "can_edit"},
}

// 唯一检查和引用解析都依赖这条表达式索引
const cellValueIndex = "idx_data_cells_column_value"

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		log.Fatalf("Cannot open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Cannot connect to database: %v", err)
	}

	fmt.Printf("Connected to database: %s\n\n", cfg.Database.Database)

	ok := true
	for table, columns := range requiredColumns {
		var tableExists bool
		err = db.QueryRow(`
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&tableExists)
		if err != nil {
			log.Fatalf("Failed to check table %s: %v", table, err)
		}
		if !tableExists {
			fmt.Printf("❌ table %s does NOT exist\n", table)
			ok = false
			continue
		}

		missing := []string{}
		for _, column := range columns {
			var columnExists bool
			err = db.QueryRow(`
				SELECT EXISTS (
					SELECT 1
					FROM information_schema.columns
					WHERE table_name = $1
					  AND column_name = $2
				)
			`, table, column).Scan(&columnExists)
			if err != nil {
				log.Fatalf("Failed to check column %s.%s: %v", table, column, err)
			}
			if !columnExists {
				missing = append(missing, column)
			}
		}

		if len(missing) > 0 {
			fmt.Printf("❌ table %s is missing columns: %v\n", table, missing)
			ok = false
		} else {
			fmt.Printf("✅ table %s (%d columns checked)\n", table, len(columns))
		}
	}

	// 表达式索引：按 (value #>> '{}') 文本投影查等值
	var indexExists bool
	err = db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes WHERE indexname = $1
		)
	`, cellValueIndex).Scan(&indexExists)
	if err != nil {
		log.Fatalf("Failed to check index: %v", err)
	}
	if indexExists {
		fmt.Printf("✅ index %s EXISTS\n", cellValueIndex)
	} else {
		fmt.Printf("❌ index %s does NOT exist (unique/reference lookups will seq-scan)\n", cellValueIndex)
		ok = false
	}

	// 关键唯一约束：cell按(row, column)最多一格
	var constraintCount int
	err = db.QueryRow(`
		SELECT COUNT(*)
		FROM information_schema.table_constraints
		WHERE table_name = 'data_cells'
		  AND constraint_type = 'UNIQUE'
	`).Scan(&constraintCount)
	if err != nil {
		log.Fatalf("Failed to check constraints: %v", err)
	}
	if constraintCount > 0 {
		fmt.Printf("✅ data_cells UNIQUE constraint present\n")
	} else {
		fmt.Printf("❌ data_cells has no UNIQUE constraint (duplicate cells possible)\n")
		ok = false
	}

	fmt.Println("\n=== Summary ===")
	if ok {
		fmt.Println("Schema matches migrations/001_init.sql")
	} else {
		fmt.Println("Schema is INCOMPLETE - re-run apply-migration")
	}
}
