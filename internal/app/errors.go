package app

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoReport is returned by queries issued before the first successful run.
var ErrNoReport = errors.New("no report computed yet")

// Entities addressable by id through the query API.
const (
	entityBill   = "bill"
	entityMember = "member"
	entityGroup  = "group"
)

// DomainError is a query failure that maps directly onto an API response.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// notFound reports an id absent from the current snapshot. The code is BILL_NOT_FOUND,
// MEMBER_NOT_FOUND or GROUP_NOT_FOUND and the details carry the requested id.
func notFound(entity string, id int64) *DomainError {
	return &DomainError{
		Status:  http.StatusNotFound,
		Code:    notFoundCode(entity),
		Message: fmt.Sprintf("%s %d is not in the current snapshot", entity, id),
		Details: map[string]any{entity + "Id": id},
	}
}

func notFoundCode(entity string) string {
	switch entity {
	case entityBill:
		return "BILL_NOT_FOUND"
	case entityMember:
		return "MEMBER_NOT_FOUND"
	case entityGroup:
		return "GROUP_NOT_FOUND"
	default:
		return "NOT_FOUND"
	}
}
