package repository

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// 地址快照里参与关键词搜索的 JSON 键
var addressSnapshotSearchKeys = []string{"contact_name", "contact_phone"}

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// jsonTextExprByDialect 构建 JSON 字段文本提取表达式，兼容 sqlite 与 postgres。
func jsonTextExprByDialect(dialect, column, key string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		// postgres 统一转 jsonb 后再使用 ->> 提取文本
		return fmt.Sprintf("(%s::jsonb ->> '%s')", column, key)
	default:
		// sqlite 使用 json_extract，键使用引号避免特殊字符问题
		return fmt.Sprintf("json_extract(%s, '$.\"%s\"')", column, key)
	}
}

// buildOrderSearchCondition 构建普通列 + 地址快照 JSON 列的 LIKE 条件，并返回参数数量。
func buildOrderSearchCondition(db *gorm.DB, plainColumns, snapshotColumns []string) (string, int) {
	return buildOrderSearchConditionByDialect(dbDialectName(db), plainColumns, snapshotColumns)
}

func buildOrderSearchConditionByDialect(dialect string, plainColumns, snapshotColumns []string) (string, int) {
	parts := make([]string, 0, len(plainColumns)+len(snapshotColumns)*len(addressSnapshotSearchKeys))
	argCount := 0
	operator := likeOperatorByDialect(dialect)

	for _, column := range plainColumns {
		trimmed := strings.TrimSpace(column)
		if trimmed == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", trimmed, operator))
		argCount++
	}

	for _, column := range snapshotColumns {
		trimmed := strings.TrimSpace(column)
		if trimmed == "" {
			continue
		}
		for _, key := range addressSnapshotSearchKeys {
			parts = append(parts, fmt.Sprintf("%s %s ?", jsonTextExprByDialect(dialect, trimmed, key), operator))
			argCount++
		}
	}

	return strings.Join(parts, " OR "), argCount
}

func likeOperatorByDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "postgres", "postgresql":
		return "ILIKE"
	default:
		return "LIKE"
	}
}

// repeatLikeArgs 生成重复的 LIKE 参数列表。
func repeatLikeArgs(like string, count int) []interface{} {
	args := make([]interface{}, 0, count)
	for i := 0; i < count; i++ {
		args = append(args, like)
	}
	return args
}
