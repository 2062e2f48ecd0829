package objectkey

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Strategy names accepted by NewGenerator
const (
	StrategyFileName = "filename"
	StrategyUnique   = "unique"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key from a client supplied file name
	GenerateKey(fileName string) string
}

// PrefixGenerator places the file name under a fixed namespace, unchanged.
// Identical file names map to identical keys, so a later upload overwrites an
// earlier one. The file name is not encoded or checked for "../" segments.
type PrefixGenerator struct {
	Prefix string
}

func NewPrefixGenerator(prefix string) *PrefixGenerator {
	return &PrefixGenerator{Prefix: prefix}
}

func (g *PrefixGenerator) GenerateKey(fileName string) string {
	return g.Prefix + fileName
}

// UniqueGenerator replaces the file name with a random UUID and keeps only
// its extension: uploads/3f0c...e1.png
type UniqueGenerator struct {
	Prefix string
	NewID  func() uuid.UUID
}

func NewUniqueGenerator(prefix string) *UniqueGenerator {
	return &UniqueGenerator{
		Prefix: prefix,
		NewID:  uuid.New,
	}
}

func (g *UniqueGenerator) GenerateKey(fileName string) string {
	id := g.NewID()
	ext := sanitizeExtension(path.Ext(fileName))
	if ext == "" {
		return g.Prefix + id.String()
	}
	return fmt.Sprintf("%s%s%s", g.Prefix, id, ext)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(fileName string) string
}

func NewCustomFuncGenerator(fn func(fileName string) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{
		GenerateFunc: fn,
	}
}

func (g *CustomFuncGenerator) GenerateKey(fileName string) string {
	return g.GenerateFunc(fileName)
}

// NewGenerator returns the generator registered under strategy.
func NewGenerator(strategy, prefix string) (Generator, error) {
	switch strategy {
	case "", StrategyFileName:
		return NewPrefixGenerator(prefix), nil
	case StrategyUnique:
		return NewUniqueGenerator(prefix), nil
	default:
		return nil, fmt.Errorf("unsupported key strategy: %s", strategy)
	}
}

func sanitizeExtension(ext string) string {
	if len(ext) <= 1 {
		return ""
	}
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return strings.ToLower(replacer.Replace(ext))
}
