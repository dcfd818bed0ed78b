package domain

import "testing"

func TestStatus_Class(t *testing.T) {
	tests := []struct {
		status Status
		class  Class
	}{
		{StatusInput, ClassInput},
		{StatusSensitiveInput, ClassInput},
		{StatusSuccess, ClassSuccess},
		{29, ClassSuccess},
		{StatusRedirectPermanent, ClassRedirect},
		{StatusSlowDown, ClassTemporary},
		{StatusBadRequest, ClassPermanent},
		{StatusCertificateNotValid, ClassCertificate},
		{9, ClassUnknown},
		{70, ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.Class(); got != tt.class {
				t.Errorf("Class() = %v, want %v", got, tt.class)
			}
		})
	}
}

func TestStatus_IsSuccess(t *testing.T) {
	for s := Status(0); s < 100; s++ {
		want := s >= 20 && s < 30
		if got := s.IsSuccess(); got != want {
			t.Errorf("Status(%d).IsSuccess() = %v, want %v", s, got, want)
		}
	}
}

func TestClass_String(t *testing.T) {
	if got := ClassTemporary.String(); got != "temporary_failure" {
		t.Errorf("String() = %q", got)
	}
	if got := Class(9).String(); got != "unknown" {
		t.Errorf("String() = %q", got)
	}
}
