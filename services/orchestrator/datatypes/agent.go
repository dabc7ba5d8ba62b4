// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request and response types for the HTTP
// surface.
//
// This file contains the agent chat types. Knowledge base and
// conversation types live in knowledge.go and conversation.go.
package datatypes

import (
	"github.com/go-playground/validator/v10"
)

// MaxQuestionBytes caps question input size. Checked as byte length to
// bound memory per request regardless of encoding.
const MaxQuestionBytes = 4 * 1024

// validate is the shared validator instance for all datatypes.
var validate = validator.New()

// ChatResponse is the agent answer payload. Its shape matches the
// cached representation, so hits stays accurate on replays.
type ChatResponse struct {
	Answer string `json:"answer"`
	Hits   int    `json:"hits"`
}
