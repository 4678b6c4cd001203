// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"sync/atomic"
)

// MessageID identifies a ChatMessage. IDs handed out by one IDSequence are
// strictly increasing.
type MessageID uint64

// String returns the display form of the ID.
func (id MessageID) String() string {
	return "msg_" + strconv.FormatUint(uint64(id), 10)
}

// IDSequence assigns message IDs. It is safe for concurrent use, but the
// state machine only calls it from its event loop.
type IDSequence struct {
	last atomic.Uint64
}

// NewIDSequence creates a sequence whose first ID is 1.
func NewIDSequence() *IDSequence {
	return &IDSequence{}
}

// Next returns the next ID.
func (s *IDSequence) Next() MessageID {
	return MessageID(s.last.Add(1))
}

// Last returns the most recently assigned ID, or 0 if none.
func (s *IDSequence) Last() MessageID {
	return MessageID(s.last.Load())
}
