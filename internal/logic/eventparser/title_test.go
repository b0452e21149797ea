package eventparser

import (
	"encoding/base64"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-indexer-sol/internal/consts"
)

// buildCreateTaskData 构造 create_task 指令数据：判别符 + borsh String(title) + 尾部其它参数
func buildCreateTaskData(disc [8]byte, title string) []byte {
	data := append([]byte{}, disc[:]...)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(title)))
	data = append(data, lenBuf...)
	data = append(data, []byte(title)...)
	// title 之后还有 description_hash 等参数，解码器必须容忍尾部字节
	data = append(data, make([]byte, 32)...)
	return data
}

func base64Of(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func TestDecodeCreateTaskTitle(t *testing.T) {
	t.Run("正常标题", func(t *testing.T) {
		title, ok := decodeCreateTaskTitle(buildCreateTaskData(createTaskDisc, "translate whitepaper"))
		require.True(t, ok)
		assert.Equal(t, "translate whitepaper", title)
	})

	t.Run("模板创建指令同样接受", func(t *testing.T) {
		title, ok := decodeCreateTaskTitle(buildCreateTaskData(createTaskFromTemplateDisc, "audit contract"))
		require.True(t, ok)
		assert.Equal(t, "audit contract", title)
	})

	t.Run("长度为上限 64 接受", func(t *testing.T) {
		max := strings.Repeat("a", consts.MaxTitleLen)
		title, ok := decodeCreateTaskTitle(buildCreateTaskData(createTaskDisc, max))
		require.True(t, ok)
		assert.Equal(t, max, title)
	})

	t.Run("长度 65 拒绝", func(t *testing.T) {
		_, ok := decodeCreateTaskTitle(buildCreateTaskData(createTaskDisc, strings.Repeat("a", consts.MaxTitleLen+1)))
		assert.False(t, ok, "超过 schema 上限视为判别符撞车")
	})

	t.Run("长度为 0 拒绝", func(t *testing.T) {
		_, ok := decodeCreateTaskTitle(buildCreateTaskData(createTaskDisc, ""))
		assert.False(t, ok)
	})

	t.Run("数据不足 12 字节拒绝", func(t *testing.T) {
		_, ok := decodeCreateTaskTitle(createTaskDisc[:])
		assert.False(t, ok)
		_, ok = decodeCreateTaskTitle(nil)
		assert.False(t, ok)
	})

	t.Run("长度前缀超过实际缓冲拒绝", func(t *testing.T) {
		data := append([]byte{}, createTaskDisc[:]...)
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, 50)
		data = append(data, lenBuf...)
		data = append(data, []byte("short")...) // 实际只有 5 字节
		_, ok := decodeCreateTaskTitle(data)
		assert.False(t, ok)
	})

	t.Run("其它指令判别符拒绝", func(t *testing.T) {
		otherDisc := Discriminator(NamespaceGlobal, "claim_task")
		_, ok := decodeCreateTaskTitle(buildCreateTaskData(otherDisc, "whatever"))
		assert.False(t, ok)
	})
}

func TestExtractTitles(t *testing.T) {
	p := NewParser("")
	taskAddr := "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	creatorAddr := "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"

	t.Run("提取 task 地址到标题的映射", func(t *testing.T) {
		msg := &TxMessage{
			AccountKeys: []string{creatorAddr, taskAddr, consts.DefaultProgramID},
			Instructions: []TxInstruction{
				{
					ProgramIDIndex: 2,
					Accounts:       []int{1, 0}, // 下标 0 固定是 task PDA
					Data:           buildCreateTaskData(createTaskDisc, "写一篇技术博客"),
				},
			},
		}
		titles := p.ExtractTitles(msg)
		require.Len(t, titles, 1)
		assert.Equal(t, "写一篇技术博客", titles[taskAddr])
	})

	t.Run("目标程序不在账户表时返回空", func(t *testing.T) {
		msg := &TxMessage{
			AccountKeys: []string{creatorAddr, taskAddr},
			Instructions: []TxInstruction{
				{ProgramIDIndex: 0, Accounts: []int{1}, Data: buildCreateTaskData(createTaskDisc, "x")},
			},
		}
		assert.Empty(t, p.ExtractTitles(msg))
	})

	t.Run("其它程序的指令跳过", func(t *testing.T) {
		msg := &TxMessage{
			AccountKeys: []string{creatorAddr, taskAddr, consts.DefaultProgramID},
			Instructions: []TxInstruction{
				{ProgramIDIndex: 0, Accounts: []int{1}, Data: buildCreateTaskData(createTaskDisc, "不归我们管")},
			},
		}
		assert.Empty(t, p.ExtractTitles(msg))
	})

	t.Run("账户下标越界跳过", func(t *testing.T) {
		msg := &TxMessage{
			AccountKeys: []string{consts.DefaultProgramID},
			Instructions: []TxInstruction{
				{ProgramIDIndex: 0, Accounts: []int{9}, Data: buildCreateTaskData(createTaskDisc, "x")},
				{ProgramIDIndex: 0, Accounts: nil, Data: buildCreateTaskData(createTaskDisc, "y")},
			},
		}
		assert.Empty(t, p.ExtractTitles(msg))
	})

	t.Run("nil message 返回空", func(t *testing.T) {
		assert.Empty(t, p.ExtractTitles(nil))
	})
}

func TestTxMessageFromJSON(t *testing.T) {
	data := buildCreateTaskData(createTaskDisc, "title")

	t.Run("legacy 格式", func(t *testing.T) {
		msg := TxMessageFromJSON(map[string]interface{}{
			"accountKeys": []interface{}{"A", "B"},
			"instructions": []interface{}{
				map[string]interface{}{
					"programIdIndex": float64(1),
					"accounts":       []interface{}{float64(0)},
					"data":           base64Of(data),
				},
			},
		})
		require.NotNil(t, msg)
		assert.Equal(t, []string{"A", "B"}, msg.AccountKeys)
		require.Len(t, msg.Instructions, 1)
		assert.Equal(t, 1, msg.Instructions[0].ProgramIDIndex)
		assert.Equal(t, []int{0}, msg.Instructions[0].Accounts)
		assert.Equal(t, data, msg.Instructions[0].Data)
	})

	t.Run("versioned 格式", func(t *testing.T) {
		msg := TxMessageFromJSON(map[string]interface{}{
			"staticAccountKeys": []interface{}{"A", "B", "C"},
			"compiledInstructions": []interface{}{
				map[string]interface{}{
					"programIdIndex":    float64(2),
					"accountKeyIndexes": []interface{}{float64(1), float64(0)},
					"data":              base64Of(data),
				},
			},
		})
		require.NotNil(t, msg)
		assert.Equal(t, []string{"A", "B", "C"}, msg.AccountKeys)
		require.Len(t, msg.Instructions, 1)
		assert.Equal(t, 2, msg.Instructions[0].ProgramIDIndex)
		assert.Equal(t, []int{1, 0}, msg.Instructions[0].Accounts)
	})

	t.Run("非法 base64 指令数据跳过", func(t *testing.T) {
		msg := TxMessageFromJSON(map[string]interface{}{
			"accountKeys": []interface{}{"A"},
			"instructions": []interface{}{
				map[string]interface{}{
					"programIdIndex": float64(0),
					"accounts":       []interface{}{},
					"data":           "!!!",
				},
			},
		})
		require.NotNil(t, msg)
		assert.Empty(t, msg.Instructions)
	})
}
