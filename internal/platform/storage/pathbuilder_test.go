package storage

import "testing"

func TestBuildProductImagePath(t *testing.T) {
	path, err := BuildObjectPath(PurposeProductImage, PathParams{
		ProductID: "prod123",
		UploadID:  "upload789",
		FileName:  "label.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "catalog/products/prod123/images/upload789/label.png"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildCategoryImagePath(t *testing.T) {
	path, err := BuildObjectPath(PurposeCategoryImage, PathParams{
		CategoryID: "cat42",
		FileName:   "banner.jpg",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := "catalog/categories/cat42/banner.jpg"
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}
}

func TestBuildObjectPathRejectsInvalidSegment(t *testing.T) {
	_, err := BuildObjectPath(PurposeProductImage, PathParams{
		ProductID: "../bad",
		UploadID:  "upload",
		FileName:  "file.png",
	})
	if err == nil {
		t.Fatalf("expected error for invalid segment")
	}
}

func TestBuildObjectPathRejectsTraversalFileName(t *testing.T) {
	_, err := BuildObjectPath(PurposeProductImage, PathParams{
		ProductID: "prod123",
		UploadID:  "upload",
		FileName:  "..\\evil.png",
	})
	if err == nil {
		t.Fatalf("expected error for traversal file name")
	}
}

func TestBuildObjectPathUnknownPurpose(t *testing.T) {
	if _, err := BuildObjectPath(AssetPurpose("receipt"), PathParams{}); err == nil {
		t.Fatalf("expected error for unknown purpose")
	}
}
