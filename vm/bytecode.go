package vm

// Opcode is a single bytecode instruction tag (spec §4.5).
type Opcode byte

const (
	OpLoadNeg1 Opcode = iota
	OpLoad0
	OpLoad1
	OpLoad2
	OpLoad3
	OpLoad4
	OpLoad5
	OpLoad   // decode and push one encoded Value
	OpPush   // Push N: decode and push N (u8) consecutive encoded Values
	OpPop    // discard one Value
	OpPopN   // discard k (u8) Values
	OpNip    // save top, pop 2, re-push saved
	OpNipN   // save top, pop 1+k (u8), re-push saved
	OpDup    // push a copy of the top Value

	OpAdd // u16 err_info_idx
	OpSub // u16 err_info_idx
	OpMul // u16 err_info_idx
	OpDiv // u16 err_info_idx
	OpMod // u16 err_info_idx
	OpEq  // u16 err_info_idx
	OpNEq // u16 err_info_idx
	OpLT  // u16 err_info_idx
	OpLTE // u16 err_info_idx
	OpGT  // u16 err_info_idx
	OpGTE // u16 err_info_idx
	OpAnd // no operands; never fails
	OpOr  // no operands; never fails
	OpNot // no operands; never fails
	OpNegate // u16 err_info_idx

	OpJmp  // u32 offset
	OpJz   // u32 offset
	OpJnz  // u32 offset

	OpInitList  // u32 N
	OpInitTable // u32 N, then N x (short-string key)
	OpInitTup   // u32 N

	OpIdxListOrTup // u16 err_info_idx, Integer idx_value
	OpSetList      // u16 err_info_idx, Integer idx_value
	OpGetMember    // u16 err_info_idx, short-string key
	OpSetMember    // u16 err_info_idx, short-string key

	OpDefGlobal // u16 err_info_idx, short-string name
	OpGetGlobal // u16 err_info_idx, short-string name
	OpSetGlobal // u16 err_info_idx, short-string name
	OpGetLocal  // u16 index
	OpSetLocal  // u16 index

	OpCallFn      // u16 err_info_idx, u16 arg_count
	OpRetFn       // no operands
	OpMakeClosure // u16 err_info_idx, u8 upvalue_count, then pairs (u8 is_local, u16 index)
	OpGetUpvalue  // u16 index
	OpSetUpvalue  // u16 index
	OpEndFn       // function-body terminator sentinel; fatal if executed

	OpHalt Opcode = 0xFF
)

// opcodeNames is used for disassembly and error messages. It is not
// indexed by the iota block above because OpHalt deliberately sits at
// 0xFF, outside the dense run.
var opcodeNames = map[Opcode]string{
	OpLoadNeg1:     "LoadNeg1",
	OpLoad0:        "Load0",
	OpLoad1:        "Load1",
	OpLoad2:        "Load2",
	OpLoad3:        "Load3",
	OpLoad4:        "Load4",
	OpLoad5:        "Load5",
	OpLoad:         "Load",
	OpPush:         "Push",
	OpPop:          "Pop",
	OpPopN:         "PopN",
	OpNip:          "Nip",
	OpNipN:         "NipN",
	OpDup:          "Dup",
	OpAdd:          "Add",
	OpSub:          "Sub",
	OpMul:          "Mul",
	OpDiv:          "Div",
	OpMod:          "Mod",
	OpEq:           "Eq",
	OpNEq:          "NEq",
	OpLT:           "LT",
	OpLTE:          "LTE",
	OpGT:           "GT",
	OpGTE:          "GTE",
	OpAnd:          "And",
	OpOr:           "Or",
	OpNot:          "Not",
	OpNegate:       "Negate",
	OpJmp:          "Jmp",
	OpJz:           "Jz",
	OpJnz:          "Jnz",
	OpInitList:     "InitList",
	OpInitTable:    "InitTable",
	OpInitTup:      "InitTup",
	OpIdxListOrTup: "IdxListOrTup",
	OpSetList:      "SetList",
	OpGetMember:    "GetMember",
	OpSetMember:    "SetMember",
	OpDefGlobal:    "DefGlobal",
	OpGetGlobal:    "GetGlobal",
	OpSetGlobal:    "SetGlobal",
	OpGetLocal:     "GetLocal",
	OpSetLocal:     "SetLocal",
	OpCallFn:       "CallFn",
	OpRetFn:        "RetFn",
	OpMakeClosure:  "MakeClosure",
	OpGetUpvalue:   "GetUpvalue",
	OpSetUpvalue:   "SetUpvalue",
	OpEndFn:        "EndFn",
	OpHalt:         "Halt",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "Unknown"
}
