// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// CreateKnowledgeRequest creates a knowledge base entry.
type CreateKnowledgeRequest struct {
	Question string `json:"question" validate:"required,min=1,max=1024"`
	Answer   string `json:"answer" validate:"required,min=1,max=8192"`
	Keywords string `json:"keywords" validate:"max=1024"`
}

// Validate checks the request against its constraints.
func (r *CreateKnowledgeRequest) Validate() error {
	return validate.Struct(r)
}

// UpdateKnowledgeRequest partially updates an entry. Absent fields are
// left unchanged; present-but-empty strings are rejected for question
// and answer.
type UpdateKnowledgeRequest struct {
	Question *string `json:"question" validate:"omitempty,min=1,max=1024"`
	Answer   *string `json:"answer" validate:"omitempty,min=1,max=8192"`
	Keywords *string `json:"keywords" validate:"omitempty,max=1024"`
}

// Validate checks the request against its constraints.
func (r *UpdateKnowledgeRequest) Validate() error {
	return validate.Struct(r)
}
