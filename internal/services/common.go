package services

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// normalizePage возвращает корректные page, pageSize и offset.
func normalizePage(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}
