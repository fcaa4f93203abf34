// Package utils holds the assertion helpers shared by the package tests.
package utils

import (
	"errors"
	"slices"
	"testing"
)

// Test helper
func Assert(t testing.TB, predicate bool, msg string) {
	t.Helper()
	if !predicate {
		t.Error(msg)
	}
}

func AssertEqual[T comparable](t testing.TB, a T, b T) {
	t.Helper()
	if a != b {
		t.Errorf("Expected %v == %v (%T)", a, b, a)
	}
}

func AssertNotEqual[T comparable](t testing.TB, a T, b T) {
	t.Helper()
	if a == b {
		t.Errorf("Expected %v != %v (%T)", a, b, a)
	}
}

// Assert that error is nil
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Errorf("Expected no error, got '%v'", err)
	}
}

// Assert that an error is not nil
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Error("Expected error, got nil")
	}
}

// Assert that err matches target in the sense of errors.Is
func AssertErrorIs(t testing.TB, err error, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Errorf("Expected error '%v', got '%v'", target, err)
	}
}

// Compare two values using a custom comparator function.
func AssertEqualWithComparator[T any](t testing.TB, a T, b T, comparator func(T, T) bool) {
	t.Helper()
	if !comparator(a, b) {
		t.Errorf("Expected %v == %v (%T)", a, b, a)
	}
}

func CompareArrays[T comparable](a []T, b []T) bool {
	return slices.Equal(a, b)
}

// Equivalent to AssertEqualWithComparator where the comparator is
// CompareArrays.
func AssertEqualArrays[T comparable](t testing.TB, a []T, b []T) {
	t.Helper()
	AssertEqualWithComparator(t, a, b, CompareArrays)
}
