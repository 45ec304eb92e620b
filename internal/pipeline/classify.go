package pipeline

import (
	"errors"

	"github.com/rcliao/devplan/internal/builder"
	"github.com/rcliao/devplan/internal/lexer"
	"github.com/rcliao/devplan/internal/parser"
	"github.com/rcliao/devplan/internal/renderer"
	"github.com/rcliao/devplan/internal/store"
)

// Class tags which stage an error came from.
type Class string

const (
	ClassNone         Class = ""
	ClassLex          Class = "lex"
	ClassParse        Class = "parse"
	ClassConfig       Class = "config"
	ClassRender       Class = "render"
	ClassStore        Class = "store"
	ClassBackpressure Class = "backpressure"
	ClassInternal     Class = "internal"
)

// Classify returns the stage class of err.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	var (
		lexErr    *lexer.Error
		parseErr  *parser.Error
		configErr *builder.ConfigError
		renderErr *renderer.Error
		storeErr  *store.Error
	)
	switch {
	case errors.As(err, &lexErr):
		return ClassLex
	case errors.As(err, &parseErr):
		return ClassParse
	case errors.As(err, &configErr):
		return ClassConfig
	case errors.Is(err, renderer.ErrBackpressure):
		return ClassBackpressure
	case errors.As(err, &renderErr):
		return ClassRender
	case errors.As(err, &storeErr):
		return ClassStore
	}
	return ClassInternal
}
