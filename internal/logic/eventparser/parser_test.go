package eventparser

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"task-indexer-sol/internal/consts"
	"task-indexer-sol/internal/logic/core"
)

// fillPubkey 生成填充同一字节的 32 字节公钥
func fillPubkey(b byte) []byte {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func u64le(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func u16le(v uint16) []byte {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return buf
}

// eventDataLine 构造一条目标程序的 "Program data: " 日志行
func eventDataLine(eventName string, payload []byte) string {
	disc := Discriminator(NamespaceEvent, eventName)
	return programDataPrefix + base64.StdEncoding.EncodeToString(append(disc[:], payload...))
}

func invokeLine(programID string) string {
	return "Program " + programID + " invoke [1]"
}

func successLine(programID string) string {
	return "Program " + programID + " success"
}

func TestDiscriminator(t *testing.T) {
	// 判别符必须是 sha256("{namespace}:{name}") 的前 8 字节，逐位兼容链上数据
	sum := sha256.Sum256([]byte("event:TaskCreated"))
	disc := Discriminator(NamespaceEvent, "TaskCreated")
	assert.Equal(t, sum[:8], disc[:], "事件判别符计算方式不可漂移")

	sum = sha256.Sum256([]byte("global:create_task"))
	disc = Discriminator(NamespaceGlobal, "create_task")
	assert.Equal(t, sum[:8], disc[:], "指令判别符计算方式不可漂移")

	// 14 个已知事件必须全部可反查
	for _, name := range knownEvents {
		tag := Discriminator(NamespaceEvent, name)
		got, ok := EventNameForDiscriminator(hex.EncodeToString(tag[:]))
		require.True(t, ok, "事件 %s 判别符反查失败", name)
		assert.Equal(t, name, got)
	}
}

func TestNewParserValidatesProgramID(t *testing.T) {
	assert.Equal(t, consts.DefaultProgramID, NewParser("").ProgramID())
	assert.Equal(t, "11111111111111111111111111111111",
		NewParser("11111111111111111111111111111111").ProgramID())
	assert.Panics(t, func() { NewParser("not-a-pubkey!!") }, "非法程序 ID 必须在启动期暴露")
}

func TestParseEventsFromLogs(t *testing.T) {
	p := NewParser("")
	programID := consts.DefaultProgramID

	taskKey := fillPubkey(0x01)
	creatorKey := fillPubkey(0x02)

	createdPayload := append(append([]byte{}, taskKey...), creatorKey...)
	createdPayload = append(createdPayload, u64le(7)...)                           // task_index
	createdPayload = append(createdPayload, u64le(1_000_000)...)                   // bounty_lamports
	deadline := int64(-5)
	createdPayload = append(createdPayload, u64le(uint64(deadline))...)            // deadline（i64 负数）

	t.Run("目标程序作用域内的事件被解析", func(t *testing.T) {
		logs := []string{
			invokeLine(programID),
			eventDataLine(core.EventTaskCreated, createdPayload),
			successLine(programID),
		}
		events := p.ParseEventsFromLogs(logs, "sig1", 100, 1700000000)
		require.Len(t, events, 1)

		evt := events[0]
		assert.Equal(t, core.EventTaskCreated, evt.EventName)
		assert.Equal(t, "sig1", evt.Signature)
		assert.Equal(t, uint64(100), evt.Slot)
		assert.Equal(t, int64(1700000000), evt.BlockTime)
		assert.Equal(t, base58.Encode(taskKey), evt.Fields["task"])
		assert.Equal(t, base58.Encode(creatorKey), evt.Fields["creator"])
		assert.Equal(t, "7", evt.Fields["task_index"])
		assert.Equal(t, "1000000", evt.Fields["bounty_lamports"])
		assert.Equal(t, "-5", evt.Fields["deadline"], "i64 必须保留符号")
	})

	t.Run("作用域外的数据行被忽略", func(t *testing.T) {
		logs := []string{
			eventDataLine(core.EventTaskCreated, createdPayload), // invoke 之前
			invokeLine(programID),
			successLine(programID),
			eventDataLine(core.EventTaskCreated, createdPayload), // success 之后
		}
		events := p.ParseEventsFromLogs(logs, "sig2", 1, 1)
		assert.Empty(t, events)
	})

	t.Run("其他程序的调用不开启作用域", func(t *testing.T) {
		other := "11111111111111111111111111111111"
		logs := []string{
			invokeLine(other),
			eventDataLine(core.EventTaskCreated, createdPayload),
			successLine(other),
		}
		events := p.ParseEventsFromLogs(logs, "sig3", 1, 1)
		assert.Empty(t, events)
	})

	t.Run("failed 同样关闭作用域", func(t *testing.T) {
		logs := []string{
			invokeLine(programID),
			"Program " + programID + " failed: custom program error: 0x1",
			eventDataLine(core.EventTaskCreated, createdPayload),
		}
		events := p.ParseEventsFromLogs(logs, "sig4", 1, 1)
		assert.Empty(t, events)
	})

	t.Run("坏行只丢弃自己", func(t *testing.T) {
		truncated := createdPayload[:40] // 负载截断，解码必然 underflow
		settledPayload := append(append([]byte{}, taskKey...), fillPubkey(0x03)...)
		settledPayload = append(settledPayload, u64le(900)...) // payout_lamports
		settledPayload = append(settledPayload, u64le(100)...) // fee_lamports

		logs := []string{
			invokeLine(programID),
			programDataPrefix + "!!!not-base64!!!",                  // base64 解码失败
			programDataPrefix + base64.StdEncoding.EncodeToString([]byte{1, 2, 3}), // 不足 8 字节
			eventDataLine(core.EventTaskCreated, truncated),         // 解码 underflow
			eventDataLine(core.EventTaskSettled, settledPayload),    // 正常事件
			successLine(programID),
		}
		events := p.ParseEventsFromLogs(logs, "sig5", 1, 1)
		require.Len(t, events, 1, "同一日志流中其它事件不受坏行影响")
		assert.Equal(t, core.EventTaskSettled, events[0].EventName)
		assert.Equal(t, "900", events[0].Fields["payout_lamports"])
		assert.Equal(t, "100", events[0].Fields["fee_lamports"])
	})

	t.Run("未知判别符静默跳过", func(t *testing.T) {
		unknown := make([]byte, 16) // 8 字节零判别符 + 负载
		logs := []string{
			invokeLine(programID),
			programDataPrefix + base64.StdEncoding.EncodeToString(unknown),
			successLine(programID),
		}
		events := p.ParseEventsFromLogs(logs, "sig6", 1, 1)
		assert.Empty(t, events)
	})

	t.Run("输出保持输入顺序", func(t *testing.T) {
		claimedPayload := append(append([]byte{}, taskKey...), fillPubkey(0x04)...)
		claimedPayload = append(claimedPayload, u64le(7)...)

		logs := []string{
			invokeLine(programID),
			eventDataLine(core.EventTaskCreated, createdPayload),
			eventDataLine(core.EventTaskClaimed, claimedPayload),
			successLine(programID),
		}
		events := p.ParseEventsFromLogs(logs, "sig7", 1, 1)
		require.Len(t, events, 2)
		assert.Equal(t, core.EventTaskCreated, events[0].EventName)
		assert.Equal(t, core.EventTaskClaimed, events[1].EventName)
	})
}

func TestDecodeEventSchemas(t *testing.T) {
	t.Run("DisputeResolved 字段齐全", func(t *testing.T) {
		payload := append(append([]byte{}, fillPubkey(0x0a)...), fillPubkey(0x0b)...)
		payload = append(payload, 2)              // ruling u8
		payload = append(payload, u16le(15)...)   // total_votes u16

		fields, err := decodeEvent(core.EventDisputeResolved, payload)
		require.NoError(t, err)
		assert.Equal(t, base58.Encode(fillPubkey(0x0a)), fields["dispute"])
		assert.Equal(t, base58.Encode(fillPubkey(0x0b)), fields["task"])
		assert.Equal(t, "2", fields["ruling"])
		assert.Equal(t, "15", fields["total_votes"])
	})

	t.Run("DeliverableSubmitted 哈希按小写 hex 渲染", func(t *testing.T) {
		hash := make([]byte, 32)
		for i := range hash {
			hash[i] = byte(i)
		}
		payload := append(append([]byte{}, fillPubkey(0x01)...), fillPubkey(0x02)...)
		payload = append(payload, hash...)

		fields, err := decodeEvent(core.EventDeliverableSubmitted, payload)
		require.NoError(t, err)
		assert.Equal(t,
			"000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
			fields["deliverable_hash"])
	})

	t.Run("负载不足返回 underflow", func(t *testing.T) {
		_, err := decodeEvent(core.EventTaskClaimed, fillPubkey(0x01)) // 缺 agent 和 task_index
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrBufferUnderflow)
	})

	t.Run("未知事件名报错", func(t *testing.T) {
		_, err := decodeEvent("NoSuchEvent", nil)
		assert.Error(t, err)
	})
}
