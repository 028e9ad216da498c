package utils

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultSize = 10
	maxSize     = 100
)

// Pagination holds the page/size pair parsed from list query params. Pages
// are 1-based; page 0 means the first page.
type Pagination struct {
	Page int `json:"page"`
	Size int `json:"page_size"`
}

func (p *Pagination) SetSize(querySize string) error {
	if querySize == "" {
		p.Size = defaultSize
		return nil
	}
	size, err := strconv.Atoi(querySize)
	if err != nil || size < 1 {
		return fmt.Errorf("invalid size %q", querySize)
	}
	if size > maxSize {
		size = maxSize
	}
	p.Size = size
	return nil
}

func (p *Pagination) SetPage(queryPage string) error {
	if queryPage == "" {
		p.Page = 0
		return nil
	}
	page, err := strconv.Atoi(queryPage)
	if err != nil || page < 0 {
		return fmt.Errorf("invalid page %q", queryPage)
	}
	p.Page = page
	return nil
}

func (p *Pagination) GetSize() int {
	return p.Size
}

func (p *Pagination) GetPage() int {
	return p.Page
}

func (p *Pagination) GetOffset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Size
}

func (p *Pagination) GetLimit() int {
	return p.Size
}

// GetPaginationFromCtx parses page and size from the request query.
func GetPaginationFromCtx(ctx echo.Context) (*Pagination, error) {
	p := &Pagination{}
	if err := p.SetSize(ctx.QueryParam("size")); err != nil {
		return nil, err
	}
	if err := p.SetPage(ctx.QueryParam("page")); err != nil {
		return nil, err
	}
	return p, nil
}

func GetHasMore(currPage, totalCount, pageSize int) bool {
	if currPage < 1 {
		currPage = 1
	}
	return currPage*pageSize < totalCount
}
