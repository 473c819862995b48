// internal/pkg/paging/paging.go
package paging

// Request 是分页请求参数，页码从 0 开始。
type Request struct {
	Page int
	Size int
}

// Normalize 约束页码与页大小到合理区间。
func (r Request) Normalize() Request {
	if r.Page < 0 {
		r.Page = 0
	}
	if r.Size <= 0 {
		r.Size = 20
	}
	if r.Size > 100 {
		r.Size = 100
	}
	return r
}

// Offset 返回 SQL 偏移量。
func (r Request) Offset() int {
	return r.Page * r.Size
}

// Info 是返回给调用方的分页元数据。
type Info struct {
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// NewInfo 根据请求与总量计算分页元数据。
func NewInfo(r Request, total int64) Info {
	pages := int(total) / r.Size
	if int(total)%r.Size != 0 {
		pages++
	}
	return Info{
		Page:          r.Page,
		Size:          r.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}
