package errors

import (
	"testing"
)

func TestIsVeto(t *testing.T) {
	parseErr := Wrap(ErrParseFailure, "bad token")
	if !IsVeto(parseErr) {
		t.Error("wrapped parse failure should be a veto")
	}

	valErr := NewValidationError("V012", "field %s out of range", "severity")
	if !IsVeto(valErr) {
		t.Error("wrapped validation failure should be a veto")
	}

	if IsVeto(ErrInconclusive) {
		t.Error("inconclusive is not a veto")
	}

	if IsVeto(nil) {
		t.Error("nil is not a veto")
	}
}

func TestValidationErrorPreservesCode(t *testing.T) {
	err := NewValidationError("V007", "unknown field %q", "zap")

	if !Is(err, ErrValidationFailure) {
		t.Fatal("validation error should wrap ErrValidationFailure")
	}

	details := GetAllDetails(err)
	found := false
	for _, d := range details {
		if d == "code=V007" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected code detail in %v", details)
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrParseFailure, ErrValidationFailure, ErrInconclusive,
		ErrMissingCalibration, ErrMissingJudge, ErrConfigInvalid,
		ErrNoAdmissibleOption, ErrNotFound,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d matches sentinel %d", i, j)
			}
		}
	}
}
