package repository

import "github.com/lib/pq"

// isDuplicateKey 是否为唯一约束冲突（Postgres错误码23505）
func isDuplicateKey(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return true
	}
	return false
}
