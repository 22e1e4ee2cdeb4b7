package storage

import (
	"strconv"
	"strings"

	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SortOrder 列表排序方式，默认最新的在前。
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ParseSortOrder accepts "oldest" and treats anything else as newest first.
func ParseSortOrder(s string) SortOrder {
	if strings.EqualFold(strings.TrimSpace(s), string(SortOldest)) {
		return SortOldest
	}
	return SortNewest
}

// ListOptions carries the search/sort/window parameters of list endpoints.
type ListOptions struct {
	Search string
	Sort   SortOrder
	Limit  int
	Offset int
}

// searchPattern 返回用于 LOWER(col) LIKE ? 的模式，空搜索返回 ""。
func (o ListOptions) searchPattern() string {
	term := strings.ToLower(strings.TrimSpace(o.Search))
	if term == "" {
		return ""
	}
	return "%" + term + "%"
}

func (o ListOptions) apply(q *gorm.DB, orderColumn string) *gorm.DB {
	dir := "DESC"
	if o.Sort == SortOldest {
		dir = "ASC"
	}
	q = q.Order(orderColumn + " " + dir).Order("id " + dir)

	limit := o.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	q = q.Limit(limit)
	if o.Offset > 0 {
		q = q.Offset(o.Offset)
	}
	return q
}

// StrToUint 将字符串转换为 uint。
func StrToUint(s string) (uint, error) {
	val, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(val), nil
}
