package app

import (
	"fmt"
	"net/http"
)

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

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func invalidReference(message string) *DomainError {
	return domainError(http.StatusBadRequest, "INVALID_REFERENCE", message, nil)
}

func conflictError(message string) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message, nil)
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func storageError(message string, details any) *DomainError {
	return domainError(http.StatusInternalServerError, "STORAGE_ERROR", message, details)
}

func collaboratorError(message string, details any) *DomainError {
	return domainError(http.StatusBadGateway, "COLLABORATOR_ERROR", message, details)
}
