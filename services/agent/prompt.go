// Copyright (C) 2026 Harmonia Labs (oss@harmonialabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package agent

import (
	"strconv"
	"strings"

	"github.com/harmonialabs/csagent/services/knowledge"
)

// DefaultRefusalMessage is the fixed reply used when retrieval finds
// nothing and as the model's own fallback when the known facts do not
// cover the question.
const DefaultRefusalMessage = "抱歉，小云暂时还没学会这个问题"

// DefaultSystemInstruction is the persona and grounding contract sent
// as the system message on every model call.
const DefaultSystemInstruction = "你是网易云音乐智能客服小云，请用亲切活泼的语气回答。\n" +
	"必须优先基于【已知信息】回答；\n" +
	"如果已知信息不足，就回答：'" + DefaultRefusalMessage + "'。\n" +
	"不要编造事实。"

// BuildUserPayload assembles the user message: the retrieved answers as
// a numbered known-facts block followed by the customer's question.
// Numbering starts at 1 and follows the hit order.
func BuildUserPayload(hits []knowledge.Entry, question string) string {
	var b strings.Builder
	b.WriteString("已知信息：\n")
	for i, hit := range hits {
		b.WriteString("[")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		b.WriteString(hit.Answer)
		b.WriteString("\n")
	}
	b.WriteString("用户问题：")
	b.WriteString(question)
	return b.String()
}
