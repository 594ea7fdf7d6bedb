package users

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"notes-serverless/internal/respond"
)

const (
	defaultPage  = 1
	defaultLimit = 25
	maxLimit     = 100
)

var errInvalidPagination = errors.New("page and limit must be positive integers")

type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type Page struct {
	Page  int
	Limit int
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ParsePage reads page and limit, defaulting to 1 and 25. limit is capped at
// maxLimit.
func ParsePage(query url.Values) (Page, error) {
	page, err := positiveOrDefault(query.Get("page"), defaultPage)
	if err != nil {
		return Page{}, err
	}
	limit, err := positiveOrDefault(query.Get("limit"), defaultLimit)
	if err != nil {
		return Page{}, err
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Page{Page: page, Limit: limit}, nil
}

func positiveOrDefault(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, errInvalidPagination
	}
	return value, nil
}

type PageResult[T any] struct {
	TotalDocuments int      `json:"totalDocuments"`
	TotalPages     int      `json:"totalPages"`
	Previous       *PageRef `json:"previous"`
	Current        PageRef  `json:"current"`
	Next           *PageRef `json:"next"`
	Data           []T      `json:"data"`
}

func NewPageResult[T any](p Page, total int, data []T) PageResult[T] {
	result := PageResult[T]{
		TotalDocuments: total,
		TotalPages:     (total + p.Limit - 1) / p.Limit,
		Current:        PageRef{Page: p.Page, Limit: p.Limit},
		Data:           data,
	}
	if p.Page > 1 {
		result.Previous = &PageRef{Page: p.Page - 1, Limit: p.Limit}
	}
	if p.Page*p.Limit < total {
		result.Next = &PageRef{Page: p.Page + 1, Limit: p.Limit}
	}
	return result
}

func (r PageResult[T]) Payload() respond.Payload {
	return respond.Payload{
		"totalDocuments": r.TotalDocuments,
		"totalPages":     r.TotalPages,
		"previous":       r.Previous,
		"current":        r.Current,
		"next":           r.Next,
		"data":           r.Data,
	}
}
