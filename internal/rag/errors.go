package rag

import "errors"

var (
	ErrDocumentTooLarge  = errors.New("document too large")
	ErrEmptyDocument     = errors.New("document contains no text")
	ErrNoTestQuestions   = errors.New("could not generate any test questions from the document")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
