package patient

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestReadSnapshot(t *testing.T) {
	repo := loadFixture(t)

	ids, err := repo.ListIDs(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "665677" || ids[1] != "6666001" {
		t.Fatalf("expected ids in file order, got %v", ids)
	}

	ids[0] = "mutated"
	again, _ := repo.ListIDs(context.Background())
	if again[0] != "665677" {
		t.Error("ListIDs should return a copy")
	}
}

func TestReadSnapshot_Invalid(t *testing.T) {
	if _, err := ReadSnapshot(strings.NewReader(`{"not":"a list"}`)); err == nil {
		t.Error("expected decode error")
	}
	if _, err := ReadSnapshot(strings.NewReader(`[[{"resource":{"resourceType":"Condition","id":"c"}}]]`)); err == nil {
		t.Error("expected error for record without a patient")
	}
}

func TestSnapshotRepository_DuplicateIDs(t *testing.T) {
	a := &Record{}
	a.Patient.ID = "1"
	a.Patient.Gender = "male"
	b := &Record{}
	b.Patient.ID = "1"
	b.Patient.Gender = "female"

	repo := NewSnapshotRepository(a, b)
	got, err := repo.Get(context.Background(), "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Patient.Gender != "male" {
		t.Error("expected first record to win")
	}
	if _, err := repo.Get(context.Background(), "2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
