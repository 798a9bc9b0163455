// Package service implements the project, task and subtask operations on top
// of the repository interfaces, keeping parent references and derived
// progress in step with every mutation.
package service

import (
	"strings"

	"progresshub/internal/apperr"
	"progresshub/internal/model"
)

// Page is one zero-based page of a listing.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	TotalPages int `json:"totalPages"`
}

func checkPage(page, size int) error {
	if page < 0 {
		return apperr.InvalidArgument("page must be >= 0, got %d", page)
	}
	if size <= 0 {
		return apperr.InvalidArgument("size must be > 0, got %d", size)
	}
	return nil
}

func totalPages(total, size int) int {
	return (total + size - 1) / size
}

// paginate slices an already ordered result set.
func paginate[T any](all []T, page, size int) Page[T] {
	items := []T{}
	if start := page * size; start < len(all) {
		end := min(start+size, len(all))
		items = all[start:end]
	}
	return Page[T]{
		Items:      items,
		Total:      len(all),
		Page:       page,
		Size:       size,
		TotalPages: totalPages(len(all), size),
	}
}

func validateName(entity, name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.InvalidArgument("%s name must not be empty", entity)
	}
	return nil
}

func validateProgress(p int) error {
	if p < model.MinProgress || p > model.MaxProgress {
		return apperr.InvalidArgument("progress must be between %d and %d, got %d", model.MinProgress, model.MaxProgress, p)
	}
	return nil
}

func validateWeight(w int) error {
	if w < model.MinWeight || w > model.MaxWeight {
		return apperr.InvalidArgument("weight must be between %d and %d, got %d", model.MinWeight, model.MaxWeight, w)
	}
	return nil
}

func intChanged(next *int, current int) bool {
	return next != nil && *next != current
}
