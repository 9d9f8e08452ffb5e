// ViolationsData is a paginated response payload for the violation history.
package dto

import "crosswatch/internal/model"

type ViolationsData struct {
	Violations  []model.Violation `json:"violations"`
	Length      int               `json:"length"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	Limit       int               `json:"pageSize"`
}
