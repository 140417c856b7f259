// Package models defines the records kept in the local submission ledger.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput is returned when a submission request is malformed.
var ErrInvalidInput = errors.New("invalid submission")

// Submission is one file sent to Compilatio for a course module.
type Submission struct {
	ID              int64     `json:"id" db:"id"`
	CM              int64     `json:"cm" db:"cm"`
	UserID          int64     `json:"userid" db:"userid"`
	Identifier      string    `json:"identifier" db:"identifier"`
	Filename        string    `json:"filename" db:"filename"`
	TimeSubmitted   time.Time `json:"timesubmitted" db:"timesubmitted"`
	StatusCode      string    `json:"statuscode" db:"statuscode"`
	ExternalID      string    `json:"externalid" db:"externalid"`
	ReportURL       string    `json:"reporturl" db:"reporturl"`
	SimilarityScore float64   `json:"similarityscore" db:"similarityscore"`
	Attempt         int       `json:"attempt" db:"attempt"`
	ErrorResponse   string    `json:"errorresponse" db:"errorresponse"`
}

// SubmissionInput is the input for submitting a file.
type SubmissionInput struct {
	CM       int64  `json:"cm"`
	UserID   int64  `json:"userid"`
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
	Content  string `json:"content"`
}

// Validate checks ownership fields and defaults the title to the filename.
func (in *SubmissionInput) Validate() error {
	if in.CM <= 0 {
		return fmt.Errorf("%w: cm must be positive", ErrInvalidInput)
	}
	if in.UserID <= 0 {
		return fmt.Errorf("%w: userid must be positive", ErrInvalidInput)
	}
	if in.Title == "" {
		in.Title = in.Filename
	}
	return nil
}
