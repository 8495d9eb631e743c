package repository

import (
	"strings"
)

// taskPredicates はTaskQueryから所有者・絞り込み条件のWHERE句を組み立てる。
// プレースホルダは"?"で出力するため、PostgreSQLではRebindして使う。
// aliasが空でない場合は列名に接頭辞を付ける。
func taskPredicates(q TaskQuery, alias string) (string, []any) {
	col := func(name string) string {
		if alias == "" {
			return name
		}
		return alias + "." + name
	}

	conds := []string{col("owner_id") + " = ?"}
	args := []any{q.OwnerID}

	if q.Filter.Priority != nil {
		conds = append(conds, col("priority")+" = ?")
		args = append(args, string(*q.Filter.Priority))
	}
	if q.Filter.Status != nil {
		conds = append(conds, col("status")+" = ?")
		args = append(args, string(*q.Filter.Status))
	}

	return strings.Join(conds, " AND "), args
}

// prefixed はカンマ区切りの列名にテーブル別名を付ける。
// 結果列名がドライバ依存にならないよう、元の列名で別名を付け直す。
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		name := strings.TrimSpace(p)
		parts[i] = alias + "." + name + " AS " + name
	}
	return strings.Join(parts, ", ")
}
