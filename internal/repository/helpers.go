package repository

import "strings"

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike 转义 LIKE 通配符
func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}
