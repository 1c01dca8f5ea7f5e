package shelf

import "sync"

// maxPooledValueBytes keeps one oversized value from pinning its buffer.
const maxPooledValueBytes = 1 << 20

var valueBytesPool = &sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

func acquireValueBytes() []byte {
	return valueBytesPool.Get().([]byte)[:0]
}

func releaseValueBytes(b []byte) {
	if cap(b) > maxPooledValueBytes {
		return
	}
	valueBytesPool.Put(b[:0])
}
