package progress

import (
	"sync"
)

// sigBuffer 签名进度的内存缓冲，攒批后由 flush loop 批量落库
type sigBuffer struct {
	mu     sync.Mutex
	buffer []*SigRecord
}

func newSigBuffer() *sigBuffer {
	return &sigBuffer{}
}

func (b *sigBuffer) Add(record *SigRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buffer = append(b.buffer, record)
}

func (b *sigBuffer) Flush() []*SigRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	flushed := b.buffer
	b.buffer = nil // reset
	return flushed
}

func (b *sigBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}
