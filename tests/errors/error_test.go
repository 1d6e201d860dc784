package errors_test

import (
	"errors"
	"testing"

	. "treadmill/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{NotFound, "Resource not found"},
		{InvalidParams, "Invalid parameters"},
		{WrongAnswer, "Wrong answer"},
		{SubmissionCompileError, "Submission failed to compile"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{Unauthorized, 401},
		{Forbidden, 403},
		{NotFound, 404},
		{TooManyRequests, 429},
		{InternalApiError, 503},
		{InternalServerError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestErrorCode_Category(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want Category
	}{
		{SubmissionCompileError, CategoryUserFault},
		{WrongAnswer, CategoryUserFault},
		{IsolateInitFail, CategoryServerFault},
		{UnsupportedLanguage, CategoryServerFault},
		{InternalApiError, CategoryTransient},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.Category(); got != tt.want {
				t.Errorf("Category() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew(t *testing.T) {
	err := New(NotFound)

	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	if err.Code != NotFound {
		t.Errorf("Code = %v, want %v", err.Code, NotFound)
	}

	if err.Error() != NotFound.Message() {
		t.Errorf("Error() = %v, want %v", err.Error(), NotFound.Message())
	}
}

func TestNewf(t *testing.T) {
	submID := int64(123)
	err := Newf(SubmissionRuntimeError, "submission %d exited with status 1", submID)

	want := "submission 123 exited with status 1"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(originalErr, InternalApiError)

	if wrappedErr.Code != InternalApiError {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, InternalApiError)
	}

	if wrappedErr.Unwrap() != originalErr {
		t.Error("Unwrap() should return original error")
	}
}

func TestError_WithDetail(t *testing.T) {
	err := New(ValidationFailed).
		WithDetail("field", "email").
		WithDetail("reason", "invalid format")

	if err.Details["field"] != "email" {
		t.Error("Field detail not set correctly")
	}

	if err.Details["reason"] != "invalid format" {
		t.Error("Reason detail not set correctly")
	}
}

func TestError_WithMessage(t *testing.T) {
	customMsg := "custom error message"
	err := New(InternalServerError).WithMessage(customMsg)

	if err.Error() != customMsg {
		t.Errorf("Error() = %v, want %v", err.Error(), customMsg)
	}
}

func TestError_IsRetryable(t *testing.T) {
	t.Run("transient is always retryable", func(t *testing.T) {
		err := New(InternalApiError)
		if !err.IsRetryable() {
			t.Error("InternalApiError should be retryable")
		}
	})

	t.Run("server fault defaults to not retryable", func(t *testing.T) {
		err := New(IsolateInitFail)
		if err.IsRetryable() {
			t.Error("IsolateInitFail should not be retryable by default")
		}
	})

	t.Run("server fault can be marked retryable explicitly", func(t *testing.T) {
		err := New(IsolateInitFail).WithRetryable(true)
		if !err.IsRetryable() {
			t.Error("WithRetryable(true) should make the error retryable")
		}
	})

	t.Run("user fault is never retryable", func(t *testing.T) {
		err := New(WrongAnswer).WithRetryable(true)
		if err.IsRetryable() {
			t.Error("user-fault category must not be retried regardless of the flag")
		}
	})
}

func TestError_WithTaskStack(t *testing.T) {
	stack := []string{"judge_pipeline", "compile_stage", "builder_environ"}
	err := New(JudgeSystemError).WithTaskStack(stack)

	if len(err.TaskStack) != len(stack) {
		t.Fatalf("TaskStack length = %d, want %d", len(err.TaskStack), len(stack))
	}
	for i, name := range stack {
		if err.TaskStack[i] != name {
			t.Errorf("TaskStack[%d] = %v, want %v", i, err.TaskStack[i], name)
		}
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{
			name: "nil error",
			err:  nil,
			want: Success,
		},
		{
			name: "custom error",
			err:  New(NotFound),
			want: NotFound,
		},
		{
			name: "standard error",
			err:  errors.New("standard error"),
			want: InternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(NotFound)

	if !Is(err, NotFound) {
		t.Error("Is() should return true for matching code")
	}

	if Is(err, InternalApiError) {
		t.Error("Is() should return false for non-matching code")
	}

	if Is(nil, NotFound) {
		t.Error("Is() should return false for nil error")
	}
}

func TestCommonErrorConstructors(t *testing.T) {
	t.Run("BadRequest", func(t *testing.T) {
		err := BadRequest("invalid input")
		if err.Code != InvalidParams {
			t.Error("BadRequest should use InvalidParams code")
		}
	})

	t.Run("NotFoundError", func(t *testing.T) {
		err := NotFoundError("submission")
		if err.Code != NotFound {
			t.Error("NotFoundError should use NotFound code")
		}
	})

	t.Run("UnauthorizedError", func(t *testing.T) {
		err := UnauthorizedError("token expired")
		if err.Code != Unauthorized {
			t.Error("UnauthorizedError should use Unauthorized code")
		}
	})

	t.Run("InternalError", func(t *testing.T) {
		originalErr := errors.New("broker error")
		err := InternalError(originalErr)
		if err.Code != InternalServerError {
			t.Error("InternalError should use InternalServerError code")
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError("lang", "unsupported")
		if err.Code != ValidationFailed {
			t.Error("ValidationError should use ValidationFailed code")
		}
		if err.Details["field"] != "lang" {
			t.Error("Field detail not set")
		}
	})

	t.Run("PreconditionError", func(t *testing.T) {
		err := PreconditionError("submission binary missing")
		if err.Code != JudgeSystemError {
			t.Error("PreconditionError should use JudgeSystemError code")
		}
	})
}
