// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInbound_Submission(t *testing.T) {
	msg, err := ParseInbound("0:1.000000|1.000000:S:0")
	require.NoError(t, err)
	assert.Equal(t, 1.0, msg.Now)
	require.Len(t, msg.SubEvents, 1)
	assert.Equal(t, KindSubmission, msg.SubEvents[0].Kind)
	assert.Equal(t, "0", msg.SubEvents[0].Payload)
}

func TestParseInbound_MultipleSubEvents(t *testing.T) {
	msg, err := ParseInbound("0:5.500000|5.500000:S:3|5.500000:C:1|6.000000:N")
	require.NoError(t, err)
	require.Len(t, msg.SubEvents, 3)
	assert.Equal(t, KindSubmission, msg.SubEvents[0].Kind)
	assert.Equal(t, KindCompletion, msg.SubEvents[1].Kind)
	assert.Equal(t, KindNOP, msg.SubEvents[2].Kind)
}

func TestParseInbound_BadVersion(t *testing.T) {
	_, err := ParseInbound("1:1.000000|1.000000:N")
	require.Error(t, err)
}

func TestParseInbound_UnknownKind(t *testing.T) {
	_, err := ParseInbound("0:1.000000|1.000000:Z")
	require.Error(t, err)
}

func TestParseInbound_MalformedFrame(t *testing.T) {
	_, err := ParseInbound("0")
	require.Error(t, err)
}

func TestEncodeOutbound_NoDecisions(t *testing.T) {
	out := EncodeOutbound(1.0, nil)
	assert.Equal(t, "0:1.000000|1.000000:N", out)
}

func TestEncodeOutbound_SortsByTimeThenInsertion(t *testing.T) {
	cmds := []OutboundCommand{
		{Time: 5, Text: "J:1=0", InsertionSeq: 2},
		{Time: 1, Text: "J:0=0", InsertionSeq: 1},
	}
	out := EncodeOutbound(1.0, cmds)
	assert.Equal(t, "0:1.000000|1.000000:J:0=0|5.000000:J:1=0", out)
}

func TestEncodeOutbound_TiesBrokenByInsertionOrder(t *testing.T) {
	cmds := []OutboundCommand{
		{Time: 1, Text: "J:1=0", InsertionSeq: 2},
		{Time: 1, Text: "J:0=0", InsertionSeq: 1},
	}
	out := EncodeOutbound(1.0, cmds)
	assert.Equal(t, "0:1.000000|1.000000:J:0=0|1.000000:J:1=0", out)
}
