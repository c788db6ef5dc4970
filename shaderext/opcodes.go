// Package shaderext gates the NVIDIA HLSL shader-extension entry
// points: opcode-support queries and UAV slot binds. Queries are
// narrowed by a static opcode allow-list; binds are recorded in the
// wrapped device's slot-tracking sink.
package shaderext

// Opcode is an NVIDIA HLSL extension opcode (NV_EXTN_OP_*).
type Opcode uint32

const (
	OpShuffle       Opcode = 1
	OpShuffleUp     Opcode = 2
	OpShuffleDown   Opcode = 3
	OpShuffleXor    Opcode = 4
	OpVoteAll       Opcode = 5
	OpVoteAny       Opcode = 6
	OpVoteBallot    Opcode = 7
	OpGetLaneID     Opcode = 8
	OpFP16Atomic    Opcode = 12
	OpFP32Atomic    Opcode = 13
	OpGetSpecial    Opcode = 19
	OpUint64Atomic  Opcode = 20
	OpMatchAnyValue Opcode = 21
)

// Supported reports whether the shim permits op. Opcodes outside this
// list report unsupported to the application even when the driver
// supports them: anything not listed here cannot be replayed faithfully.
func Supported(op Opcode) bool {
	switch op {
	case OpShuffle, OpShuffleUp, OpShuffleDown, OpShuffleXor,
		OpVoteAll, OpVoteAny, OpVoteBallot, OpGetLaneID,
		OpFP16Atomic, OpFP32Atomic, OpGetSpecial,
		OpUint64Atomic, OpMatchAnyValue:
		return true
	default:
		return false
	}
}

// Allowed returns the allow-listed opcodes in ascending order, with the
// names used by the vendor's HLSL headers. Used for diagnostics.
func Allowed() []struct {
	Op   Opcode
	Name string
} {
	return []struct {
		Op   Opcode
		Name string
	}{
		{OpShuffle, "NV_EXTN_OP_SHFL"},
		{OpShuffleUp, "NV_EXTN_OP_SHFL_UP"},
		{OpShuffleDown, "NV_EXTN_OP_SHFL_DOWN"},
		{OpShuffleXor, "NV_EXTN_OP_SHFL_XOR"},
		{OpVoteAll, "NV_EXTN_OP_VOTE_ALL"},
		{OpVoteAny, "NV_EXTN_OP_VOTE_ANY"},
		{OpVoteBallot, "NV_EXTN_OP_VOTE_BALLOT"},
		{OpGetLaneID, "NV_EXTN_OP_GET_LANE_ID"},
		{OpFP16Atomic, "NV_EXTN_OP_FP16_ATOMIC"},
		{OpFP32Atomic, "NV_EXTN_OP_FP32_ATOMIC"},
		{OpGetSpecial, "NV_EXTN_OP_GET_SPECIAL"},
		{OpUint64Atomic, "NV_EXTN_OP_UINT64_ATOMIC"},
		{OpMatchAnyValue, "NV_EXTN_OP_MATCH_ANY_VALUE"},
	}
}
