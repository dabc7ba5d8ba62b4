// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// CreateConversationRequest opens a conversation for a customer.
type CreateConversationRequest struct {
	CustomerID string `json:"customer_id" validate:"required,min=1,max=128"`
}

// Validate checks the request against its constraints.
func (r *CreateConversationRequest) Validate() error {
	return validate.Struct(r)
}

// AddMessageRequest appends a message to a conversation.
type AddMessageRequest struct {
	Sender  string `json:"sender" validate:"required,oneof=CUSTOMER AGENT"`
	Content string `json:"content" validate:"required,min=1,max=8192"`
}

// Validate checks the request against its constraints.
func (r *AddMessageRequest) Validate() error {
	return validate.Struct(r)
}
