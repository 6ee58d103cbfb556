package errors

import "testing"

func TestGetCategory(t *testing.T) {
	tests := []struct {
		code             string
		expectedCategory ErrorCategory
	}{
		// Caller errors
		{CodeInvalidArgument, CategoryCaller},
		{CodeValidation, CategoryCaller},
		{CodeConfigError, CategoryCaller},

		// State errors
		{CodeFailedPrecondition, CategoryState},
		{CodeAlreadyConfigured, CategoryState},

		// Connectivity errors
		{CodeNotConnected, CategoryConnectivity},
		{CodeTransportError, CategoryConnectivity},

		// Timeout errors
		{CodeTimeout, CategoryTimeout},

		// Internal errors
		{CodeInternal, CategoryInternal},
		{CodeUnknown, CategoryInternal},
		{CodeSerializationError, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			category := GetCategory(tt.code)
			if category != tt.expectedCategory {
				t.Errorf("GetCategory(%s) = %s, want %s", tt.code, category, tt.expectedCategory)
			}
		})
	}
}
