package packet

// Client → server opcodes.
const (
	C_OPCODE_LOGIN            byte = 0x01
	C_OPCODE_CREATE_ACCOUNT   byte = 0x02
	C_OPCODE_CHARACTER_LIST   byte = 0x03
	C_OPCODE_CREATE_CHARACTER byte = 0x04
	C_OPCODE_SELECT_CHARACTER byte = 0x05
	C_OPCODE_ENTER_GAME       byte = 0x06
	C_OPCODE_EXIT_GAME        byte = 0x07
	C_OPCODE_LEFT_GAME        byte = 0x08
	C_OPCODE_MOVEMENT         byte = 0x10
	C_OPCODE_ATTACK           byte = 0x11
)

// Server → client opcodes.
const (
	S_OPCODE_LOGIN_RESULT            byte = 0x81
	S_OPCODE_CREATE_ACCOUNT_RESULT   byte = 0x82
	S_OPCODE_CHARACTER_LIST_RESULT   byte = 0x83
	S_OPCODE_CREATE_CHARACTER_RESULT byte = 0x84
	S_OPCODE_SELECT_CHARACTER_RESULT byte = 0x85
	S_OPCODE_PLAYER_DATA             byte = 0x90
	S_OPCODE_MOVEMENT_START          byte = 0x91
	S_OPCODE_LEFT                    byte = 0x92
	S_OPCODE_EXIT_GAME               byte = 0x93
)
