// ViolationFilters describe user-provided filters to narrow the violation list.
package dto

import "crosswatch/internal/model"

type ViolationFilters struct {
	Type     model.Class
	Reviewed *bool // nil means both
	Limit    int
	Offset   int
}
