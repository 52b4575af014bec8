package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeRejectsMissingType(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte(`{"session":"m1::dev"}`))
	require.Error(t, err)

	_, err = Decode([]byte(`not json`))
	require.Error(t, err)
}

func TestDecodeUnknownTypePasses(t *testing.T) {
	t.Parallel()

	// Unknown types are the receiver's problem, not the codec's.
	msg, err := Decode([]byte(`{"type":"futureThing","payload":"x"}`))
	require.NoError(t, err)
	require.Equal(t, "futureThing", msg.Type)
	require.Equal(t, "x", msg.Payload)
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	t.Parallel()

	data, err := (&Message{Type: TypeKeys, Payload: "ls"}).Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.NotContains(t, raw, "role")
	require.NotContains(t, raw, "session")
	require.NotContains(t, raw, "meta")
}

func TestMetaInt(t *testing.T) {
	t.Parallel()

	msg := &Message{Meta: map[string]string{
		MetaCols: "120",
		MetaRows: "forty",
	}}

	cols, ok := msg.MetaInt(MetaCols)
	require.True(t, ok)
	require.Equal(t, 120, cols)

	_, ok = msg.MetaInt(MetaRows)
	require.False(t, ok)

	_, ok = msg.MetaInt("missing")
	require.False(t, ok)

	_, ok = (&Message{}).MetaInt(MetaCols)
	require.False(t, ok)
}

func TestSessionIDs(t *testing.T) {
	t.Parallel()

	require.Equal(t, "m1::dev", SessionID("m1", "dev"))
	require.Equal(t, "agent-7::_control_", ControlSessionID("agent-7"))
}

func TestRegister(t *testing.T) {
	t.Parallel()

	msg := Register("m1::dev", "dev", "m1", "tok")
	require.Equal(t, TypeRegister, msg.Type)
	require.Equal(t, RoleHost, msg.Role)
	require.Equal(t, "m1::dev", msg.Session)
	require.Equal(t, "dev", msg.Meta[MetaLabel])
	require.Equal(t, "m1", msg.Meta[MetaMachineID])
	require.Equal(t, "tok", msg.Meta[MetaAuthToken])

	// No token, no meta key.
	anon := Register("m1::dev", "dev", "m1", "")
	require.NotContains(t, anon.Meta, MetaAuthToken)
}

func TestParsePayload(t *testing.T) {
	t.Parallel()

	msg := &Message{
		Type: TypeExec,
		Meta: map[string]string{
			MetaRequestID: "r1",
			MetaPayload:   `{"command":"echo hi","timeout":500}`,
		},
	}

	var req ExecRequest
	require.NoError(t, ParsePayload(msg, &req))
	require.Equal(t, "echo hi", req.Command)
	require.Equal(t, 500, req.Timeout)

	empty := &Message{Type: TypeExec}
	require.Error(t, ParsePayload(empty, &req))

	bad := &Message{Type: TypeExec, Meta: map[string]string{MetaPayload: "{"}}
	require.Error(t, ParsePayload(bad, &req))
}

func TestAPIResponse(t *testing.T) {
	t.Parallel()

	resp, err := APIResponse("r1", ExecResponse{Success: true})
	require.NoError(t, err)
	require.Equal(t, TypeAPIResponse, resp.Type)
	require.Equal(t, "r1", resp.Meta[MetaRequestID])

	var body ExecResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Meta[MetaPayload]), &body))
	require.True(t, body.Success)
}
