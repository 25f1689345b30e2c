package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	if !errors.Is(err, originalErr) {
		t.Error("wrapped error should unwrap to the cause")
	}
	if !strings.Contains(err.Error(), "original error") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("stream")
	if err.Code != ErrCodeNotFound {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeNotFound)
	}
	if err.HTTPStatus != 404 {
		t.Errorf("HTTPStatus = %v, want 404", err.HTTPStatus)
	}
	if err.Message != "stream not found" {
		t.Errorf("Message = %v", err.Message)
	}
}

func TestNewUnauthorizedError(t *testing.T) {
	err := NewUnauthorizedError("bad token")
	if err.Code != ErrCodeUnauthorized {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeUnauthorized)
	}
	if err.HTTPStatus != 401 {
		t.Errorf("HTTPStatus = %v, want 401", err.HTTPStatus)
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInvalidInput, "test", 400)
	if GetAppError(appErr) != appErr {
		t.Error("GetAppError() should return the AppError itself")
	}
	if GetAppError(errors.New("regular")) != nil {
		t.Error("GetAppError() should return nil for regular errors")
	}
	if GetAppError(nil) != nil {
		t.Error("GetAppError() should return nil for nil")
	}
}
