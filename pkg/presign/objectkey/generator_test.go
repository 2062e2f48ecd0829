package objectkey

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestPrefixGenerator(t *testing.T) {
	gen := NewPrefixGenerator("uploads/")

	tests := []struct {
		name     string
		fileName string
		expected string
	}{
		{name: "simple", fileName: "cat.png", expected: "uploads/cat.png"},
		{name: "nested path kept", fileName: "a/b/c.txt", expected: "uploads/a/b/c.txt"},
		{name: "no sanitization", fileName: "../etc/passwd", expected: "uploads/../etc/passwd"},
		{name: "spaces kept", fileName: "my photo.jpg", expected: "uploads/my photo.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gen.GenerateKey(tt.fileName)
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestPrefixGenerator_Deterministic(t *testing.T) {
	gen := NewPrefixGenerator("uploads/")

	first := gen.GenerateKey("cat.png")
	second := gen.GenerateKey("cat.png")
	if first != second {
		t.Errorf("expected identical keys, got %s and %s", first, second)
	}
}

func TestUniqueGenerator(t *testing.T) {
	fixed := uuid.MustParse("987fcdeb-51a2-43d1-9f12-345678901234")
	gen := NewUniqueGenerator("uploads/")
	gen.NewID = func() uuid.UUID { return fixed }

	tests := []struct {
		name     string
		fileName string
		expected string
	}{
		{name: "keeps extension", fileName: "cat.PNG", expected: "uploads/987fcdeb-51a2-43d1-9f12-345678901234.png"},
		{name: "no extension", fileName: "README", expected: "uploads/987fcdeb-51a2-43d1-9f12-345678901234"},
		{name: "drops directories", fileName: "../../x.jpg", expected: "uploads/987fcdeb-51a2-43d1-9f12-345678901234.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := gen.GenerateKey(tt.fileName)
			if result != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestUniqueGenerator_RandomKeys(t *testing.T) {
	gen := NewUniqueGenerator("uploads/")

	first := gen.GenerateKey("cat.png")
	second := gen.GenerateKey("cat.png")
	if first == second {
		t.Errorf("expected distinct keys, got %s twice", first)
	}
	if !strings.HasPrefix(first, "uploads/") || !strings.HasSuffix(first, ".png") {
		t.Errorf("unexpected key shape: %s", first)
	}
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator("", "uploads/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gen.(*PrefixGenerator); !ok {
		t.Errorf("expected PrefixGenerator by default, got %T", gen)
	}

	gen, err = NewGenerator(StrategyUnique, "uploads/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := gen.(*UniqueGenerator); !ok {
		t.Errorf("expected UniqueGenerator, got %T", gen)
	}

	if _, err := NewGenerator("sharded", "uploads/"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestCustomFuncGenerator(t *testing.T) {
	gen := NewCustomFuncGenerator(func(fileName string) string {
		return "custom/" + strings.ToUpper(fileName)
	})
	if got := gen.GenerateKey("a.txt"); got != "custom/A.TXT" {
		t.Errorf("expected custom/A.TXT, got %s", got)
	}
}
