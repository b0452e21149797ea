package eventparser

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/near/borsh-go"

	"task-indexer-sol/internal/consts"
)

// create_task / create_task_from_template 指令判别符（global 命名空间）
var (
	createTaskDisc             = Discriminator(NamespaceGlobal, "create_task")
	createTaskFromTemplateDisc = Discriminator(NamespaceGlobal, "create_task_from_template")
)

// TxMessage 交易 message 的中立表示，屏蔽 versioned（compiledInstructions）与
// legacy（instructions）两种来源形态的差异。
type TxMessage struct {
	AccountKeys  []string // 账户列表（base58）
	Instructions []TxInstruction
}

type TxInstruction struct {
	ProgramIDIndex int
	Accounts       []int  // 指令账户在 AccountKeys 中的下标
	Data           []byte // 原始指令数据
}

// createTaskArgs create_task 指令参数前缀。
// Borsh String = u32 LE 长度 + utf8 字节；title 之后还有 description_hash 等字段，
// borsh-go 容忍尾部多余字节，只取 Title。
type createTaskArgs struct {
	Title string
}

// ExtractTitles 扫描指令提取任务标题，返回 task PDA 地址 → title。
// 标题只存在于指令参数里，事件流中没有，必须单独走这条路径恢复。
// 单条指令解析失败只跳过该条，继续扫描其余指令。
func (p *Parser) ExtractTitles(msg *TxMessage) map[string]string {
	titles := make(map[string]string)
	if msg == nil {
		return titles
	}

	// 1. 定位目标程序在账户列表中的下标，未出现则整笔交易无关
	programIdx := -1
	for i, key := range msg.AccountKeys {
		if key == p.programID {
			programIdx = i
			break
		}
	}
	if programIdx < 0 {
		return titles
	}

	// 2. 逐条匹配目标程序的 create 指令
	for _, ix := range msg.Instructions {
		if ix.ProgramIDIndex != programIdx {
			continue
		}

		title, ok := decodeCreateTaskTitle(ix.Data)
		if !ok {
			continue
		}

		// 两种 create 指令的账户布局里，下标 0 固定是新建的 task PDA
		if len(ix.Accounts) == 0 {
			continue
		}
		taskIdx := ix.Accounts[0]
		if taskIdx < 0 || taskIdx >= len(msg.AccountKeys) {
			continue
		}
		titles[msg.AccountKeys[taskIdx]] = title
	}

	return titles
}

// decodeCreateTaskTitle 解码 create 指令数据中的 title 参数。
// 长度前缀为 0 或超过 schema 上限时按"判别符撞车"处理，静默拒绝。
func decodeCreateTaskTitle(data []byte) (string, bool) {
	if len(data) < 12 {
		return "", false // 至少需要判别符(8) + 长度前缀(4)
	}

	var disc [8]byte
	copy(disc[:], data[:8])
	if disc != createTaskDisc && disc != createTaskFromTemplateDisc {
		return "", false
	}

	titleLen := binary.LittleEndian.Uint32(data[8:12])
	if titleLen == 0 || titleLen > consts.MaxTitleLen {
		return "", false
	}
	if len(data) < 12+int(titleLen) {
		return "", false
	}

	var args createTaskArgs
	if err := borsh.Deserialize(&args, data[8:]); err != nil {
		return "", false
	}
	return args.Title, true
}

// TxMessageFromJSON 从 getTransaction JSON 形态构造 TxMessage，
// 同时兼容 versioned（compiledInstructions / staticAccountKeys / accountKeyIndexes）
// 与 legacy（instructions / accountKeys / accounts，data 为 base64 字符串）两种 shape。
func TxMessageFromJSON(msg map[string]interface{}) *TxMessage {
	if msg == nil {
		return nil
	}

	keys := asStringSlice(msg["staticAccountKeys"])
	if len(keys) == 0 {
		keys = asStringSlice(msg["accountKeys"])
	}

	rawInstrs, ok := msg["compiledInstructions"].([]interface{})
	accountsKey := "accountKeyIndexes"
	if !ok {
		rawInstrs, _ = msg["instructions"].([]interface{})
		accountsKey = "accounts"
	}

	result := &TxMessage{AccountKeys: keys}
	for _, raw := range rawInstrs {
		obj, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}

		data, ok := instructionData(obj["data"])
		if !ok {
			continue
		}

		result.Instructions = append(result.Instructions, TxInstruction{
			ProgramIDIndex: int(asInt64(obj["programIdIndex"])),
			Accounts:       asIntSlice(obj[accountsKey]),
			Data:           data,
		})
	}
	return result
}

// instructionData 指令数据兼容两种表示：字节数组或 base64 字符串
func instructionData(v interface{}) ([]byte, bool) {
	switch d := v.(type) {
	case string:
		raw, err := base64.StdEncoding.DecodeString(d)
		if err != nil {
			return nil, false
		}
		return raw, true
	case []interface{}:
		raw := make([]byte, 0, len(d))
		for _, b := range d {
			raw = append(raw, byte(asInt64(b)))
		}
		return raw, true
	case []byte:
		return d, true
	default:
		return nil, false
	}
}

func asIntSlice(v interface{}) []int {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	result := make([]int, 0, len(items))
	for _, item := range items {
		result = append(result, int(asInt64(item)))
	}
	return result
}
